// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/email"
	"github.com/danielhkuo/ballotline/metrics"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/payments"
	"github.com/danielhkuo/ballotline/store"
)

const (
	donationCurrency = "usd"
	maxWebhookBody   = 1 << 16
)

type DonationHandler struct {
	st       *store.Store
	cfg      cliparse.Config
	provider payments.Provider
}

func NewDonationHandler(st *store.Store, cfg cliparse.Config, provider payments.Provider) *DonationHandler {
	return &DonationHandler{st: st, cfg: cfg, provider: provider}
}

// CreateDonation handles POST /candidates/{slug}/donations. The donation is
// recorded as pending and the donor is sent to the provider's checkout.
func (h *DonationHandler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.DonationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.DonorName = strings.Join(strings.Fields(req.DonorName), " ")
	req.DonorEmail = normalizeEmail(req.DonorEmail)
	req.Employer = strings.TrimSpace(req.Employer)
	req.Occupation = strings.TrimSpace(req.Occupation)

	switch {
	case req.DonorName == "" || len(req.DonorName) > maxNameLen:
		middleware.ErrorResponse(w, http.StatusBadRequest, "donor_name is required")
		return
	case req.DonorEmail == "" || !validEmail(req.DonorEmail):
		middleware.ErrorResponse(w, http.StatusBadRequest, "a valid donor_email is required")
		return
	case req.Employer == "" || req.Occupation == "":
		middleware.ErrorResponse(w, http.StatusBadRequest, "employer and occupation are required")
		return
	case req.AmountCents < h.cfg.MinDonationCents:
		middleware.ErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("amount_cents must be at least %d", h.cfg.MinDonationCents))
		return
	case req.AmountCents > h.cfg.ContributionLimitCents:
		limitExceeded(w, h.cfg.ContributionLimitCents)
		return
	}

	c, err := h.st.GetCandidateBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "candidate")
		return
	}
	if c.Status != models.CandidateVerified || !c.DonationsEnabled {
		middleware.ErrorResponse(w, http.StatusConflict, "This candidate is not accepting donations")
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.LinkSigningSalt)
	d := models.Donation{
		ID:          auth.NewID(),
		CandidateID: c.ID,
		DonorName:   req.DonorName,
		DonorEmail:  req.DonorEmail,
		Employer:    req.Employer,
		Occupation:  req.Occupation,
		AmountCents: req.AmountCents,
		Currency:    donationCurrency,
		Status:      models.DonationPending,
		IPHash:      &ipHash,
		CreatedAt:   h.st.Now(),
	}
	if u, ok := currentUser(r); ok {
		d.DonorUserID = &u.ID
	}
	err = h.st.CreateDonationWithinLimit(ctx, d, h.cfg.ContributionLimitCents)
	if errors.Is(err, store.ErrLimitExceeded) {
		limitExceeded(w, h.cfg.ContributionLimitCents)
		return
	} else if err != nil {
		storeError(w, err, "donation")
		return
	}

	profileURL := h.cfg.BaseURL + "/candidates/" + c.Slug
	session, err := h.provider.CreateCheckout(ctx, payments.CheckoutRequest{
		DonationID:    d.ID,
		CandidateName: c.Name,
		AmountCents:   d.AmountCents,
		Currency:      d.Currency,
		DonorEmail:    d.DonorEmail,
		SuccessURL:    profileURL + "?donation=success",
		CancelURL:     profileURL + "?donation=cancelled",
	})
	if err != nil {
		slog.Error("failed to create checkout session", "donation_id", d.ID, "error", err)
		if err := h.st.MarkDonationFailed(ctx, d.ID); err != nil {
			slog.Error("failed to mark donation failed", "donation_id", d.ID, "error", err)
		}
		metrics.Donations.WithLabelValues(models.DonationFailed).Inc()
		middleware.ErrorResponse(w, http.StatusBadGateway, "Payment provider unavailable")
		return
	}
	if err := h.st.AttachCheckoutSession(ctx, d.ID, session.ID); err != nil {
		storeError(w, err, "donation")
		return
	}

	metrics.Donations.WithLabelValues(models.DonationPending).Inc()
	slog.Info("donation checkout started", "donation_id", d.ID, "candidate_id", c.ID, "amount_cents", d.AmountCents)
	middleware.JSONResponse(w, http.StatusCreated, models.DonationResponse{
		DonationID:  d.ID,
		CheckoutURL: session.URL,
	})
}

func limitExceeded(w http.ResponseWriter, limit int64) {
	middleware.ErrorResponse(w, http.StatusUnprocessableEntity,
		fmt.Sprintf("This contribution would exceed the %s limit per donor", email.FormatCents(limit)))
}

// Webhook handles POST /webhooks/payments
func (h *DonationHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	err = payments.VerifySignature(r.Header.Get("Stripe-Signature"), body, h.cfg.PaymentsWebhookSecret,
		h.st.Now(), payments.DefaultTolerance)
	if err != nil {
		slog.Warn("rejected payment webhook", "error", err)
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	event, err := payments.ParseEvent(body)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if event.Outcome == payments.OutcomeIgnored {
		middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "ignored"})
		return
	}

	status, err := h.settle(r.Context(), event.SessionID, event.Outcome, event.AmountTotal)
	if err != nil {
		storeError(w, err, "donation")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: status})
}

// CompleteLocal handles GET /donations/{id}/complete, the checkout page of
// the local provider. It marks the donation paid immediately.
func (h *DonationHandler) CompleteLocal(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PaymentsProvider != "local" {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found")
		return
	}
	status, err := h.settle(r.Context(), "local_"+r.PathValue("id"), payments.OutcomePaid, 0)
	if err != nil {
		storeError(w, err, "donation")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: status})
}

// settle applies a provider outcome to the donation behind sessionID and
// reports what happened. Unknown sessions and replays are not errors, so the
// provider stops retrying. A nonzero paidCents must equal the recorded
// amount or the donation stays pending.
func (h *DonationHandler) settle(ctx context.Context, sessionID string, outcome payments.Outcome, paidCents int64) (string, error) {
	d, err := h.st.GetDonationBySession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("payment webhook for unknown session", "session_id", sessionID)
		return "unknown", nil
	}
	if err != nil {
		return "", err
	}

	if outcome == payments.OutcomeFailed {
		err := h.st.MarkDonationFailed(ctx, d.ID)
		if errors.Is(err, store.ErrConflict) {
			return "duplicate", nil
		}
		if err != nil {
			return "", err
		}
		metrics.Donations.WithLabelValues(models.DonationFailed).Inc()
		slog.Info("donation failed", "donation_id", d.ID)
		return models.DonationFailed, nil
	}

	if paidCents != 0 && paidCents != d.AmountCents {
		slog.Error("payment amount does not match donation", "donation_id", d.ID,
			"amount_cents", d.AmountCents, "paid_cents", paidCents)
		return "amount_mismatch", nil
	}

	c, err := h.st.GetCandidate(ctx, d.CandidateID)
	if err != nil {
		return "", err
	}
	recipient := c.ContactEmail
	if c.OwnerID != nil {
		if owner, err := h.st.GetUser(ctx, *c.OwnerID); err == nil {
			recipient = owner.Email
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}

	paidAt := h.st.Now()
	amount := email.FormatCents(d.AmountCents)
	receipt, err := email.NewMessage(d.DonorEmail, email.KindDonationReceipt, map[string]any{
		"DonorName":     d.DonorName,
		"CandidateName": c.Name,
		"Amount":        amount,
		"Date":          paidAt.Format("January 2, 2006"),
		"DonationID":    d.ID,
	})
	if err != nil {
		return "", err
	}
	emails := []models.Email{receipt}
	if recipient != "" {
		notice, err := email.NewMessage(recipient, email.KindDonationReceived, map[string]any{
			"CandidateName": c.Name,
			"DonorName":     d.DonorName,
			"Amount":        amount,
			"DashboardURL":  h.cfg.BaseURL + "/candidates/" + c.Slug + "/donations",
		})
		if err != nil {
			return "", err
		}
		emails = append(emails, notice)
	}

	err = h.st.MarkDonationPaid(ctx, d.ID, paidAt, emails)
	if errors.Is(err, store.ErrConflict) {
		return "duplicate", nil
	}
	if err != nil {
		return "", err
	}

	metrics.Donations.WithLabelValues(models.DonationPaid).Inc()
	slog.Info("donation paid", "donation_id", d.ID, "candidate_id", c.ID, "amount_cents", d.AmountCents)
	return models.DonationPaid, nil
}
