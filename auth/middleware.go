// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
)

type ctxKey struct{}

// UserStore persists identities seen in provider tokens.
type UserStore interface {
	UpsertUser(ctx context.Context, subject, email, name string, admin bool) (models.User, error)
}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(models.User)
	return user, ok
}

// Authenticator resolves bearer tokens into users.
type Authenticator struct {
	verifier *Verifier
	users    UserStore
	isAdmin  func(email string) bool
}

// NewAuthenticator wires the token verifier to the user store. isAdmin
// decides which emails are promoted to the admin role on sign-in.
func NewAuthenticator(v *Verifier, users UserStore, isAdmin func(string) bool) *Authenticator {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Authenticator{verifier: v, users: users, isAdmin: isAdmin}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", true
	}
	return parts[1], true
}

// authenticate writes an error response and returns false when the request
// carries a bad token
func (a *Authenticator) authenticate(w http.ResponseWriter, r *http.Request, token string) (*http.Request, bool) {
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid Authorization header format (expected 'Bearer <token>')")
		return r, false
	}

	claims, err := a.verifier.Verify(token)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
		return r, false
	}
	if claims.Email == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Token email is required")
		return r, false
	}

	user, err := a.users.UpsertUser(r.Context(), claims.Subject, claims.Email, claims.Name, a.isAdmin(claims.Email))
	if err != nil {
		slog.Error("failed to upsert user", "error", err, "subject", claims.Subject)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return r, false
	}

	return r.WithContext(WithUser(r.Context(), user)), true
}

// RequireUser rejects requests without a valid bearer token
func (a *Authenticator) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, present := bearerToken(r)
		if !present {
			middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing Authorization header")
			return
		}
		r, ok := a.authenticate(w, r, token)
		if !ok {
			return
		}
		next(w, r)
	}
}

// OptionalUser attaches the user when a token is sent and lets anonymous
// requests through
func (a *Authenticator) OptionalUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, present := bearerToken(r)
		if !present {
			next(w, r)
			return
		}
		r, ok := a.authenticate(w, r, token)
		if !ok {
			return
		}
		next(w, r)
	}
}

// RequireRole must wrap a handler already behind RequireUser
func RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next(w, r)
					return
				}
			}
			middleware.ErrorResponse(w, http.StatusForbidden, "Insufficient role")
		}
	}
}
