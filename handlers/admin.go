// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/email"
	"github.com/danielhkuo/ballotline/ingest"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

const (
	maxImportBytes = 5 << 20
	emailListLimit = 100
)

// AdminHandler serves the back office. Every route sits behind
// RequireRole("admin").
type AdminHandler struct {
	st       *store.Store
	cfg      cliparse.Config
	importer *ingest.Importer
}

func NewAdminHandler(st *store.Store, cfg cliparse.Config) *AdminHandler {
	return &AdminHandler{st: st, cfg: cfg, importer: ingest.NewImporter(st)}
}

// Stats handles GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.st.Stats(r.Context())
	if err != nil {
		storeError(w, err, "stats")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, stats)
}

// VerifyCandidate handles POST /admin/candidates/{id}/verify
func (h *AdminHandler) VerifyCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.st.GetCandidate(ctx, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "candidate")
		return
	}

	to := c.ContactEmail
	if c.OwnerID != nil {
		owner, err := h.st.GetUser(ctx, *c.OwnerID)
		if err != nil {
			storeError(w, err, "user")
			return
		}
		to = owner.Email
	}

	err = h.st.InTx(ctx, func(tx *sql.Tx) error {
		changed, err := h.st.SetCandidateStatus(ctx, tx, c.ID, models.CandidateVerified)
		if err != nil || !changed || to == "" {
			return err
		}
		return email.Enqueue(ctx, h.st, tx, to, email.KindCandidateVerified, map[string]any{
			"CandidateName": c.Name,
			"ProfileURL":    h.cfg.BaseURL + "/candidates/" + c.Slug,
		})
	})
	if err != nil {
		storeError(w, err, "candidate")
		return
	}

	slog.Info("candidate verified", "candidate_id", c.ID)
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: models.CandidateVerified})
}

// RejectCandidate handles POST /admin/candidates/{id}/reject
func (h *AdminHandler) RejectCandidate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.st.SetCandidateStatus(r.Context(), h.st.DB(), r.PathValue("id"), models.CandidateRejected); err != nil {
		storeError(w, err, "candidate")
		return
	}
	slog.Info("candidate rejected", "candidate_id", r.PathValue("id"))
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: models.CandidateRejected})
}

// ApproveVendor handles POST /admin/vendors/{id}/approve
func (h *AdminHandler) ApproveVendor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.st.GetVendor(ctx, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "vendor")
		return
	}

	err = h.st.InTx(ctx, func(tx *sql.Tx) error {
		changed, err := h.st.SetVendorStatus(ctx, tx, v.ID, models.VendorApproved)
		if err != nil || !changed {
			return err
		}
		return email.Enqueue(ctx, h.st, tx, v.ContactEmail, email.KindVendorApproved, map[string]any{
			"VendorName": v.Name,
			"ListingURL": h.cfg.BaseURL + "/vendors/" + v.Slug,
		})
	})
	if err != nil {
		storeError(w, err, "vendor")
		return
	}

	slog.Info("vendor approved", "vendor_id", v.ID)
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: models.VendorApproved})
}

// RejectVendor handles POST /admin/vendors/{id}/reject
func (h *AdminHandler) RejectVendor(w http.ResponseWriter, r *http.Request) {
	if _, err := h.st.SetVendorStatus(r.Context(), h.st.DB(), r.PathValue("id"), models.VendorRejected); err != nil {
		storeError(w, err, "vendor")
		return
	}
	slog.Info("vendor rejected", "vendor_id", r.PathValue("id"))
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: models.VendorRejected})
}

// ImportCandidates handles POST /admin/elections/{slug}/import. The body is
// the raw CSV or TSV file; ?filename= names it in the job record.
func (h *AdminHandler) ImportCandidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	election, err := h.st.GetElectionBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "election")
		return
	}

	filename := path.Base(r.URL.Query().Get("filename"))
	if filename == "." || filename == "/" {
		filename = "upload.csv"
	}

	user, _ := currentUser(r)
	report, err := h.importer.Import(ctx, election.ID, user.ID, filename, http.MaxBytesReader(w, r.Body, maxImportBytes))
	if errors.Is(err, ingest.ErrInvalidFile) {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		storeError(w, err, "import")
		return
	}

	slog.Info("candidates imported", "election_id", election.ID, "job_id", report.JobID,
		"imported", report.Imported, "skipped", report.Skipped)
	middleware.JSONResponse(w, http.StatusOK, report)
}

// ListEmails handles GET /admin/emails?status=
func (h *AdminHandler) ListEmails(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.EmailPending, models.EmailSending, models.EmailSent, models.EmailFailed:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be one of: pending, sending, sent, failed")
		return
	}

	emails, err := h.st.ListEmails(r.Context(), status, emailListLimit)
	if err != nil {
		storeError(w, err, "email")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, emails)
}

// RetryEmail handles POST /admin/emails/{id}/retry. Only failed emails can
// be retried.
func (h *AdminHandler) RetryEmail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.st.RetryEmail(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "No failed email with that id")
			return
		}
		storeError(w, err, "email")
		return
	}
	slog.Info("email requeued", "email_id", id)
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: models.EmailPending})
}

// SetRole handles PUT /admin/users/{id}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req models.SetRoleRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !models.IsValidRole(req.Role) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "role must be one of: voter, candidate, vendor, admin")
		return
	}

	id := r.PathValue("id")
	if err := h.st.SetUserRole(r.Context(), id, req.Role); err != nil {
		storeError(w, err, "user")
		return
	}
	slog.Info("user role changed", "user_id", id, "role", req.Role)
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: req.Role})
}
