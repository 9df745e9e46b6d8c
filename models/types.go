package models

import "time"

// User roles
const (
	RoleVoter     = "voter"
	RoleCandidate = "candidate"
	RoleVendor    = "vendor"
	RoleAdmin     = "admin"
)

// Candidate status constants
const (
	CandidatePending  = "pending"
	CandidateVerified = "verified"
	CandidateRejected = "rejected"
)

// Vendor status constants
const (
	VendorPending  = "pending"
	VendorApproved = "approved"
	VendorRejected = "rejected"
)

// Donation status constants
const (
	DonationPending = "pending"
	DonationPaid    = "paid"
	DonationFailed  = "failed"
)

// Email queue status constants
const (
	EmailPending = "pending"
	EmailSending = "sending"
	EmailSent    = "sent"
	EmailFailed  = "failed"
)

// Change event kinds
const (
	EventProfileUpdated  = "profile_updated"
	EventPostPublished   = "post_published"
	EventElectionChanged = "election_changed"
)

// IsValidRole reports whether role is one of the known user roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleVoter, RoleCandidate, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Domain types

type User struct {
	ID          string    `json:"id"`
	AuthSubject string    `json:"-"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	EmailOptOut bool      `json:"email_opt_out"`
	CreatedAt   time.Time `json:"created_at"`
}

type Election struct {
	ID                   string     `json:"id"`
	Slug                 string     `json:"slug"`
	Name                 string     `json:"name"`
	Jurisdiction         string     `json:"jurisdiction"`
	State                string     `json:"state"`
	ElectionDate         time.Time  `json:"election_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Description          string     `json:"description"`
	Published            bool       `json:"published"`
	CreatedAt            time.Time  `json:"created_at"`
}

type Candidate struct {
	ID               string    `json:"id"`
	OwnerID          *string   `json:"-"`
	ElectionID       string    `json:"election_id"`
	Slug             string    `json:"slug"`
	Name             string    `json:"name"`
	Office           string    `json:"office"`
	District         string    `json:"district"`
	Party            string    `json:"party"`
	Bio              string    `json:"bio"`
	Website          string    `json:"website"`
	PhotoURL         string    `json:"photo_url"`
	ContactEmail     string    `json:"-"`
	Status           string    `json:"status"`
	DonationsEnabled bool      `json:"donations_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Post struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

type Follower struct {
	UserID      string
	Email       string
	NotifyEmail bool
	EmailOptOut bool
}

type ChangeEvent struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Kind        string    `json:"kind"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
}

type Notification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	EventID     string     `json:"event_id"`
	CandidateID string     `json:"candidate_id"`
	Message     string     `json:"message"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Vendor struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"-"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Website      string    `json:"website"`
	ContactEmail string    `json:"-"`
	ServiceArea  string    `json:"service_area"`
	PriceRange   string    `json:"price_range"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type Inquiry struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendor_id"`
	CandidateID string    `json:"candidate_id"`
	SenderID    string    `json:"sender_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

type Donation struct {
	ID                string     `json:"id"`
	CandidateID       string     `json:"candidate_id"`
	DonorUserID       *string    `json:"-"`
	DonorName         string     `json:"donor_name"`
	DonorEmail        string     `json:"donor_email"`
	Employer          string     `json:"employer"`
	Occupation        string     `json:"occupation"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	ProviderSessionID *string    `json:"-"`
	IPHash            *string    `json:"-"` // Never expose in JSON
	CreatedAt         time.Time  `json:"created_at"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

type Email struct {
	ID            string     `json:"id"`
	ToAddr        string     `json:"to"`
	Kind          string     `json:"kind"`
	Payload       string     `json:"-"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     *string    `json:"last_error,omitempty"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

type ImportJob struct {
	ID         string    `json:"id"`
	ElectionID string    `json:"election_id"`
	Filename   string    `json:"filename"`
	TotalRows  int       `json:"total_rows"`
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type Stats struct {
	Users              map[string]int `json:"users"`
	Elections          int            `json:"elections"`
	CandidatesByStatus map[string]int `json:"candidates"`
	VendorsByStatus    map[string]int `json:"vendors"`
	DonationsPaidCents int64          `json:"donations_paid_cents"`
	EmailsByStatus     map[string]int `json:"emails"`
	PendingEvents      int            `json:"pending_events"`
}
