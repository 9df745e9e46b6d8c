package models

import "time"

// Request types

type UpdateMeRequest struct {
	DisplayName string `json:"display_name"`
}

type ElectionRequest struct {
	Name                 string     `json:"name"`
	Jurisdiction         string     `json:"jurisdiction"`
	State                string     `json:"state"`
	ElectionDate         time.Time  `json:"election_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Description          string     `json:"description"`
	Published            bool       `json:"published"`
}

type CandidateRequest struct {
	ElectionSlug     string `json:"election_slug"`
	Name             string `json:"name"`
	Office           string `json:"office"`
	District         string `json:"district"`
	Party            string `json:"party"`
	Bio              string `json:"bio"`
	Website          string `json:"website"`
	PhotoURL         string `json:"photo_url"`
	ContactEmail     string `json:"contact_email"`
	DonationsEnabled bool   `json:"donations_enabled"`
}

type PostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type FollowRequest struct {
	NotifyEmail *bool `json:"notify_email,omitempty"`
}

type VendorRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Website      string `json:"website"`
	ContactEmail string `json:"contact_email"`
	ServiceArea  string `json:"service_area"`
	PriceRange   string `json:"price_range"`
}

type InquiryRequest struct {
	CandidateSlug string `json:"candidate_slug"`
	Message       string `json:"message"`
}

type DonationRequest struct {
	AmountCents int64  `json:"amount_cents"`
	DonorName   string `json:"donor_name"`
	DonorEmail  string `json:"donor_email"`
	Employer    string `json:"employer"`
	Occupation  string `json:"occupation"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// Response types

type ElectionDetailResponse struct {
	Election Election               `json:"election"`
	Offices  map[string][]Candidate `json:"offices"`
}

type CandidateProfileResponse struct {
	Candidate     Candidate `json:"candidate"`
	Posts         []Post    `json:"posts"`
	FollowerCount int       `json:"follower_count"`
}

type DonationResponse struct {
	DonationID  string `json:"donation_id"`
	CheckoutURL string `json:"checkout_url"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ImportReport struct {
	JobID    string   `json:"job_id"`
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
