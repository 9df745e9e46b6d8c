// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

type ElectionHandler struct {
	st  *store.Store
	cfg cliparse.Config
}

func NewElectionHandler(st *store.Store, cfg cliparse.Config) *ElectionHandler {
	return &ElectionHandler{st: st, cfg: cfg}
}

// ListElections handles GET /elections
func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	elections, err := h.st.ListElections(r.Context(), store.ElectionFilter{
		State:         q.Get("state"),
		UpcomingOnly:  q.Get("upcoming") == "true",
		PublishedOnly: true,
	})
	if err != nil {
		storeError(w, err, "election")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, elections)
}

// GetElection handles GET /elections/{slug}
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	election, err := h.st.GetElectionBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "election")
		return
	}
	if !election.Published {
		if u, ok := currentUser(r); !ok || u.Role != models.RoleAdmin {
			middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
			return
		}
	}

	candidates, err := h.st.ListCandidates(r.Context(), store.CandidateFilter{
		ElectionID: election.ID,
		Status:     models.CandidateVerified,
	})
	if err != nil {
		storeError(w, err, "candidate")
		return
	}

	offices := map[string][]models.Candidate{}
	for _, c := range candidates {
		offices[c.Office] = append(offices[c.Office], c)
	}

	middleware.JSONResponse(w, http.StatusOK, models.ElectionDetailResponse{
		Election: election,
		Offices:  offices,
	})
}

func validateElection(req *models.ElectionRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	req.State = strings.ToUpper(strings.TrimSpace(req.State))
	switch {
	case req.Name == "":
		return "name is required"
	case len(req.Name) > maxNameLen:
		return "name is too long"
	case req.ElectionDate.IsZero():
		return "election_date is required"
	case req.State != "" && len(req.State) != 2:
		return "state must be a two-letter code"
	case req.RegistrationDeadline != nil && req.RegistrationDeadline.After(req.ElectionDate):
		return "registration_deadline must be before election_date"
	}
	return ""
}

// CreateElection handles POST /admin/elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.ElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateElection(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	slug := auth.Slugify(req.Name)
	if slug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name must contain letters or digits")
		return
	}

	election := models.Election{
		ID:                   auth.NewID(),
		Slug:                 slug,
		Name:                 req.Name,
		Jurisdiction:         strings.TrimSpace(req.Jurisdiction),
		State:                req.State,
		ElectionDate:         req.ElectionDate.UTC(),
		RegistrationDeadline: req.RegistrationDeadline,
		Description:          strings.TrimSpace(req.Description),
		Published:            req.Published,
		CreatedAt:            h.st.Now(),
	}
	if err := h.st.CreateElection(r.Context(), election); err != nil {
		storeError(w, err, "election")
		return
	}

	slog.Info("election created", "election_id", election.ID, "slug", election.Slug)
	middleware.JSONResponse(w, http.StatusCreated, election)
}

// UpdateElection handles PUT /admin/elections/{slug}. Moving the date of a
// published election notifies followers of every verified candidate on it.
func (h *ElectionHandler) UpdateElection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	election, err := h.st.GetElectionBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "election")
		return
	}

	var req models.ElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateElection(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	dateChanged := !req.ElectionDate.Equal(election.ElectionDate)
	election.Name = req.Name
	election.Jurisdiction = strings.TrimSpace(req.Jurisdiction)
	election.State = req.State
	election.ElectionDate = req.ElectionDate.UTC()
	election.RegistrationDeadline = req.RegistrationDeadline
	election.Description = strings.TrimSpace(req.Description)
	election.Published = req.Published

	var affected []models.Candidate
	if dateChanged && election.Published {
		affected, err = h.st.ListCandidates(ctx, store.CandidateFilter{
			ElectionID: election.ID,
			Status:     models.CandidateVerified,
		})
		if err != nil {
			storeError(w, err, "candidate")
			return
		}
	}

	now := h.st.Now()
	summary := fmt.Sprintf("%s is now on %s", election.Name, election.ElectionDate.Format("January 2, 2006"))
	err = h.st.InTx(ctx, func(tx *sql.Tx) error {
		if err := h.st.UpdateElection(ctx, tx, election); err != nil {
			return err
		}
		for _, c := range affected {
			err := h.st.InsertChangeEvent(ctx, tx, models.ChangeEvent{
				ID:          auth.NewID(),
				CandidateID: c.ID,
				Kind:        models.EventElectionChanged,
				Summary:     summary,
				CreatedAt:   now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		storeError(w, err, "election")
		return
	}

	slog.Info("election updated", "election_id", election.ID, "date_changed", dateChanged, "events", len(affected))
	middleware.JSONResponse(w, http.StatusOK, election)
}
