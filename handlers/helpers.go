// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

const (
	maxNameLen    = 200
	maxBodyLen    = 20000
	maxMessageLen = 2000
)

// storeError maps store sentinels to HTTP statuses and logs anything else
func storeError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, strings.ToUpper(what[:1])+what[1:]+" not found")
	case errors.Is(err, store.ErrConflict):
		middleware.ErrorResponse(w, http.StatusConflict, strings.ToUpper(what[:1])+what[1:]+" already exists")
	default:
		slog.Error("database error", "what", what, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
}

// currentUser returns the authenticated user; routes behind RequireUser
// always have one
func currentUser(r *http.Request) (models.User, bool) {
	return auth.UserFromContext(r.Context())
}

func canManageCandidate(u models.User, c models.Candidate) bool {
	if u.Role == models.RoleAdmin {
		return true
	}
	return c.OwnerID != nil && *c.OwnerID == u.ID
}

func canManageVendor(u models.User, v models.Vendor) bool {
	return u.Role == models.RoleAdmin || v.OwnerID == u.ID
}

func validURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validEmail(raw string) bool {
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == raw
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
