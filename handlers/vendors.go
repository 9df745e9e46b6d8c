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
	"github.com/danielhkuo/ballotline/email"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

type VendorHandler struct {
	st  *store.Store
	cfg cliparse.Config
}

func NewVendorHandler(st *store.Store, cfg cliparse.Config) *VendorHandler {
	return &VendorHandler{st: st, cfg: cfg}
}

// ListVendors handles GET /vendors
func (h *VendorHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendors, err := h.st.ListVendors(r.Context(), store.VendorFilter{
		Category: strings.ToLower(q.Get("category")),
		State:    q.Get("state"),
		Query:    q.Get("q"),
		Status:   models.VendorApproved,
	})
	if err != nil {
		storeError(w, err, "vendor")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, vendors)
}

// GetVendor handles GET /vendors/{slug}
func (h *VendorHandler) GetVendor(w http.ResponseWriter, r *http.Request) {
	v, err := h.st.GetVendorBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "vendor")
		return
	}
	if v.Status != models.VendorApproved {
		u, ok := currentUser(r)
		if !ok || !canManageVendor(u, v) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Vendor not found")
			return
		}
	}
	middleware.JSONResponse(w, http.StatusOK, v)
}

func (h *VendorHandler) validate(req *models.VendorRequest) string {
	req.Name = strings.Join(strings.Fields(req.Name), " ")
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.Website = strings.TrimSpace(req.Website)
	req.ContactEmail = normalizeEmail(req.ContactEmail)
	req.ServiceArea = strings.ToUpper(strings.TrimSpace(req.ServiceArea))

	switch {
	case req.Name == "":
		return "name is required"
	case len(req.Name) > maxNameLen:
		return "name is too long"
	case !h.cfg.IsVendorCategory(req.Category):
		return "category must be one of: " + strings.Join(h.cfg.VendorCategories, ", ")
	case req.ContactEmail == "" || !validEmail(req.ContactEmail):
		return "a valid contact_email is required"
	case !validURL(req.Website):
		return "website must be an http or https URL"
	case len(req.Description) > maxBodyLen:
		return "description is too long"
	}
	return ""
}

// CreateVendor handles POST /vendors. Listings start pending review.
func (h *VendorHandler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(r)

	var req models.VendorRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := h.validate(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	slug, err := auth.UniqueSlug(req.Name)
	if err != nil {
		slog.Error("failed to generate slug", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create vendor")
		return
	}

	v := models.Vendor{
		ID:           auth.NewID(),
		OwnerID:      user.ID,
		Slug:         slug,
		Name:         req.Name,
		Category:     req.Category,
		Description:  strings.TrimSpace(req.Description),
		Website:      req.Website,
		ContactEmail: req.ContactEmail,
		ServiceArea:  req.ServiceArea,
		PriceRange:   strings.TrimSpace(req.PriceRange),
		Status:       models.VendorPending,
		CreatedAt:    h.st.Now(),
	}
	err = h.st.InTx(ctx, func(tx *sql.Tx) error {
		if err := h.st.CreateVendor(ctx, tx, v); err != nil {
			return err
		}
		return h.st.PromoteUser(ctx, tx, user.ID, models.RoleVendor)
	})
	if err != nil {
		storeError(w, err, "vendor")
		return
	}

	slog.Info("vendor listing created", "vendor_id", v.ID, "owner_id", user.ID, "category", v.Category)
	middleware.JSONResponse(w, http.StatusCreated, v)
}

// UpdateVendor handles PUT /vendors/{slug}
func (h *VendorHandler) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.st.GetVendorBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "vendor")
		return
	}
	user, _ := currentUser(r)
	if !canManageVendor(user, v) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your vendor listing")
		return
	}

	var req models.VendorRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := h.validate(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	v.Name = req.Name
	v.Category = req.Category
	v.Description = strings.TrimSpace(req.Description)
	v.Website = req.Website
	v.ContactEmail = req.ContactEmail
	v.ServiceArea = req.ServiceArea
	v.PriceRange = strings.TrimSpace(req.PriceRange)
	if err := h.st.UpdateVendor(ctx, v); err != nil {
		storeError(w, err, "vendor")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, v)
}

// CreateInquiry handles POST /vendors/{slug}/inquiries. A campaign reaches
// out to an approved vendor, who gets the message by email.
func (h *VendorHandler) CreateInquiry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(r)

	var req models.InquiryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || len(req.Message) > maxMessageLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "message must be 1-2000 characters")
		return
	}
	if req.CandidateSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "candidate_slug is required")
		return
	}

	v, err := h.st.GetVendorBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "vendor")
		return
	}
	if v.Status != models.VendorApproved {
		middleware.ErrorResponse(w, http.StatusNotFound, "Vendor not found")
		return
	}

	c, err := h.st.GetCandidateBySlug(ctx, req.CandidateSlug)
	if err != nil {
		storeError(w, err, "candidate")
		return
	}
	if !canManageCandidate(user, c) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your candidate profile")
		return
	}

	replyTo := c.ContactEmail
	if replyTo == "" {
		replyTo = user.Email
	}
	inquiry := models.Inquiry{
		ID:          auth.NewID(),
		VendorID:    v.ID,
		CandidateID: c.ID,
		SenderID:    user.ID,
		Message:     req.Message,
		CreatedAt:   h.st.Now(),
	}
	err = h.st.InTx(ctx, func(tx *sql.Tx) error {
		if err := h.st.CreateInquiry(ctx, tx, inquiry); err != nil {
			return err
		}
		return email.Enqueue(ctx, h.st, tx, v.ContactEmail, email.KindVendorInquiry, map[string]any{
			"CandidateName": c.Name,
			"Office":        c.Office,
			"VendorName":    v.Name,
			"Message":       inquiry.Message,
			"ReplyTo":       replyTo,
		})
	})
	if err != nil {
		storeError(w, err, "inquiry")
		return
	}

	slog.Info("vendor inquiry sent", "vendor_id", v.ID, "candidate_id", c.ID)
	middleware.JSONResponse(w, http.StatusCreated, inquiry)
}
