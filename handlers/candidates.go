// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

const (
	profilePostLimit = 10
	listLimit        = 200
)

type CandidateHandler struct {
	st  *store.Store
	cfg cliparse.Config
}

func NewCandidateHandler(st *store.Store, cfg cliparse.Config) *CandidateHandler {
	return &CandidateHandler{st: st, cfg: cfg}
}

// ListCandidates handles GET /candidates
func (h *CandidateHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CandidateFilter{
		Office: strings.TrimSpace(q.Get("office")),
		Query:  q.Get("q"),
		Status: models.CandidateVerified,
		Limit:  listLimit,
	}

	if slug := q.Get("election"); slug != "" {
		election, err := h.st.GetElectionBySlug(r.Context(), slug)
		if err != nil {
			storeError(w, err, "election")
			return
		}
		filter.ElectionID = election.ID
	}

	candidates, err := h.st.ListCandidates(r.Context(), filter)
	if err != nil {
		storeError(w, err, "candidate")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, candidates)
}

// GetCandidate handles GET /candidates/{slug}. Profiles that are not yet
// verified are only visible to their owner and admins.
func (h *CandidateHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.st.GetCandidateBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "candidate")
		return
	}
	if c.Status != models.CandidateVerified {
		u, ok := currentUser(r)
		if !ok || !canManageCandidate(u, c) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
			return
		}
	}

	posts, err := h.st.ListPosts(ctx, c.ID, profilePostLimit)
	if err != nil {
		storeError(w, err, "post")
		return
	}
	followers, err := h.st.CountFollowers(ctx, c.ID)
	if err != nil {
		storeError(w, err, "follow")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CandidateProfileResponse{
		Candidate:     c,
		Posts:         posts,
		FollowerCount: followers,
	})
}

func validateCandidate(req *models.CandidateRequest) string {
	req.Name = strings.Join(strings.Fields(req.Name), " ")
	req.Office = strings.Join(strings.Fields(req.Office), " ")
	req.District = strings.TrimSpace(req.District)
	req.Party = strings.TrimSpace(req.Party)
	req.Website = strings.TrimSpace(req.Website)
	req.PhotoURL = strings.TrimSpace(req.PhotoURL)
	req.ContactEmail = normalizeEmail(req.ContactEmail)

	switch {
	case req.Name == "":
		return "name is required"
	case len(req.Name) > maxNameLen:
		return "name is too long"
	case req.Office == "":
		return "office is required"
	case len(req.Bio) > maxBodyLen:
		return "bio is too long"
	case !validURL(req.Website):
		return "website must be an http or https URL"
	case !validURL(req.PhotoURL):
		return "photo_url must be an http or https URL"
	case req.ContactEmail != "" && !validEmail(req.ContactEmail):
		return "invalid contact_email"
	}
	return ""
}

// CreateCandidate handles POST /candidates. The profile starts pending and
// the user becomes a candidate.
func (h *CandidateHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(r)

	var req models.CandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ElectionSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election_slug is required")
		return
	}
	if msg := validateCandidate(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	election, err := h.st.GetElectionBySlug(ctx, req.ElectionSlug)
	if err != nil {
		storeError(w, err, "election")
		return
	}
	if _, err := h.st.FindCandidate(ctx, election.ID, req.Name, req.Office, req.District); err == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "Candidate already listed for this office")
		return
	}

	slug, err := auth.UniqueSlug(req.Name)
	if err != nil {
		slog.Error("failed to generate slug", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create candidate")
		return
	}

	contact := req.ContactEmail
	if contact == "" {
		contact = user.Email
	}
	now := h.st.Now()
	c := models.Candidate{
		ID:               auth.NewID(),
		OwnerID:          &user.ID,
		ElectionID:       election.ID,
		Slug:             slug,
		Name:             req.Name,
		Office:           req.Office,
		District:         req.District,
		Party:            req.Party,
		Bio:              strings.TrimSpace(req.Bio),
		Website:          req.Website,
		PhotoURL:         req.PhotoURL,
		ContactEmail:     contact,
		Status:           models.CandidatePending,
		DonationsEnabled: req.DonationsEnabled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = h.st.InTx(ctx, func(tx *sql.Tx) error {
		if err := h.st.CreateCandidate(ctx, tx, c); err != nil {
			return err
		}
		return h.st.PromoteUser(ctx, tx, user.ID, models.RoleCandidate)
	})
	if err != nil {
		storeError(w, err, "candidate")
		return
	}

	slog.Info("candidate profile created", "candidate_id", c.ID, "owner_id", user.ID, "election_id", election.ID)
	middleware.JSONResponse(w, http.StatusCreated, c)
}

// loadManaged fetches the candidate in the path and checks the caller may
// edit it
func (h *CandidateHandler) loadManaged(w http.ResponseWriter, r *http.Request) (models.Candidate, models.User, bool) {
	c, err := h.st.GetCandidateBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "candidate")
		return c, models.User{}, false
	}
	user, _ := currentUser(r)
	if !canManageCandidate(user, c) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your candidate profile")
		return c, user, false
	}
	return c, user, true
}

// UpdateCandidate handles PUT /candidates/{slug}
func (h *CandidateHandler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, _, ok := h.loadManaged(w, r)
	if !ok {
		return
	}

	var req models.CandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateCandidate(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	before := c
	c.Name = req.Name
	c.Office = req.Office
	c.District = req.District
	c.Party = req.Party
	c.Bio = strings.TrimSpace(req.Bio)
	c.Website = req.Website
	c.PhotoURL = req.PhotoURL
	if req.ContactEmail != "" {
		c.ContactEmail = req.ContactEmail
	}
	c.DonationsEnabled = req.DonationsEnabled
	if c == before {
		middleware.JSONResponse(w, http.StatusOK, c)
		return
	}
	c.UpdatedAt = h.st.Now()

	err := h.st.InTx(ctx, func(tx *sql.Tx) error {
		if err := h.st.UpdateCandidate(ctx, tx, c); err != nil {
			return err
		}
		if c.Status != models.CandidateVerified {
			return nil
		}
		return h.st.InsertChangeEvent(ctx, tx, models.ChangeEvent{
			ID:          auth.NewID(),
			CandidateID: c.ID,
			Kind:        models.EventProfileUpdated,
			Summary:     c.Name + " updated their profile",
			CreatedAt:   c.UpdatedAt,
		})
	})
	if err != nil {
		storeError(w, err, "candidate")
		return
	}

	slog.Info("candidate profile updated", "candidate_id", c.ID)
	middleware.JSONResponse(w, http.StatusOK, c)
}

// CreatePost handles POST /candidates/{slug}/posts
func (h *CandidateHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, _, ok := h.loadManaged(w, r)
	if !ok {
		return
	}
	if c.Status != models.CandidateVerified {
		middleware.ErrorResponse(w, http.StatusConflict, "Only verified candidates can publish posts")
		return
	}

	var req models.PostRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	switch {
	case req.Title == "":
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	case req.Body == "":
		middleware.ErrorResponse(w, http.StatusBadRequest, "body is required")
		return
	case len(req.Title) > maxNameLen || len(req.Body) > maxBodyLen:
		middleware.ErrorResponse(w, http.StatusBadRequest, "post is too long")
		return
	}

	post := models.Post{
		ID:          auth.NewID(),
		CandidateID: c.ID,
		Title:       req.Title,
		Body:        req.Body,
		CreatedAt:   h.st.Now(),
	}
	err := h.st.InTx(ctx, func(tx *sql.Tx) error {
		if err := h.st.CreatePost(ctx, tx, post); err != nil {
			return err
		}
		return h.st.InsertChangeEvent(ctx, tx, models.ChangeEvent{
			ID:          auth.NewID(),
			CandidateID: c.ID,
			Kind:        models.EventPostPublished,
			Summary:     c.Name + " published: " + post.Title,
			CreatedAt:   post.CreatedAt,
		})
	})
	if err != nil {
		storeError(w, err, "post")
		return
	}

	slog.Info("post published", "candidate_id", c.ID, "post_id", post.ID)
	middleware.JSONResponse(w, http.StatusCreated, post)
}

// ListDonations handles GET /candidates/{slug}/donations
func (h *CandidateHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.loadManaged(w, r)
	if !ok {
		return
	}
	donations, err := h.st.ListDonations(r.Context(), c.ID)
	if err != nil {
		storeError(w, err, "donation")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, donations)
}
