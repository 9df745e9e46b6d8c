// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

const notificationLimit = 50

// UserHandler serves the signed-in user's account, follows and notifications
type UserHandler struct {
	st  *store.Store
	cfg cliparse.Config
}

func NewUserHandler(st *store.Store, cfg cliparse.Config) *UserHandler {
	return &UserHandler{st: st, cfg: cfg}
}

// GetMe handles GET /me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	middleware.JSONResponse(w, http.StatusOK, user)
}

// UpdateMe handles PUT /me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req models.UpdateMeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	name := strings.Join(strings.Fields(req.DisplayName), " ")
	if name == "" || len(name) > maxNameLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "display_name must be 1-200 characters")
		return
	}

	if err := h.st.SetDisplayName(r.Context(), user.ID, name); err != nil {
		storeError(w, err, "user")
		return
	}
	user.DisplayName = name
	middleware.JSONResponse(w, http.StatusOK, user)
}

// Follow handles POST /candidates/{slug}/follow. Following again only
// updates the email preference.
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(r)

	var req models.FollowRequest
	if r.ContentLength != 0 {
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	notify := true
	if req.NotifyEmail != nil {
		notify = *req.NotifyEmail
	}

	c, err := h.st.GetCandidateBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "candidate")
		return
	}
	if c.Status != models.CandidateVerified {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}

	if err := h.st.Follow(ctx, user.ID, c.ID, notify); err != nil {
		storeError(w, err, "follow")
		return
	}

	slog.Info("candidate followed", "user_id", user.ID, "candidate_id", c.ID, "notify_email", notify)
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "following"})
}

// Unfollow handles DELETE /candidates/{slug}/follow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(r)

	c, err := h.st.GetCandidateBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		storeError(w, err, "candidate")
		return
	}
	if err := h.st.Unfollow(ctx, user.ID, c.ID); err != nil {
		storeError(w, err, "follow")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "unfollowed"})
}

// ListFollows handles GET /me/follows
func (h *UserHandler) ListFollows(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	candidates, err := h.st.ListFollowedCandidates(r.Context(), user.ID)
	if err != nil {
		storeError(w, err, "follow")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, candidates)
}

// ListNotifications handles GET /me/notifications
func (h *UserHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	unread := r.URL.Query().Get("unread") == "true"

	notes, err := h.st.ListNotifications(r.Context(), user.ID, unread, notificationLimit)
	if err != nil {
		storeError(w, err, "notification")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, notes)
}

// MarkNotificationRead handles POST /me/notifications/{id}/read
func (h *UserHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	if err := h.st.MarkNotificationRead(r.Context(), user.ID, r.PathValue("id")); err != nil {
		storeError(w, err, "notification")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "read"})
}

// Unsubscribe handles GET /email/unsubscribe. The signed token stands in
// for a login so the link works straight from an email client.
func (h *UserHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.ParseUnsubscribeToken(r.URL.Query().Get("token"), h.cfg.LinkSigningSalt)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid unsubscribe link")
		return
	}

	if err := h.st.SetEmailOptOut(r.Context(), userID, true); err != nil {
		storeError(w, err, "user")
		return
	}

	slog.Info("user unsubscribed from email", "user_id", userID)
	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "unsubscribed"})
}
