// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/handlers"
	"github.com/danielhkuo/ballotline/metrics"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/payments"
	"github.com/danielhkuo/ballotline/store"
)

// Deps are the collaborators built in main that handlers don't own
type Deps struct {
	Auth     *auth.Authenticator
	Limiter  middleware.Limiter
	Payments payments.Provider
}

func NewRouter(st *store.Store, cfg cliparse.Config, deps Deps) http.Handler {
	mux := http.NewServeMux()

	// Initialize handlers
	electionHandler := handlers.NewElectionHandler(st, cfg)
	candidateHandler := handlers.NewCandidateHandler(st, cfg)
	userHandler := handlers.NewUserHandler(st, cfg)
	vendorHandler := handlers.NewVendorHandler(st, cfg)
	donationHandler := handlers.NewDonationHandler(st, cfg, deps.Payments)
	adminHandler := handlers.NewAdminHandler(st, cfg)

	user := deps.Auth.RequireUser
	optional := deps.Auth.OptionalUser
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return user(auth.RequireRole(models.RoleAdmin)(h))
	}
	campaign := func(h http.HandlerFunc) http.HandlerFunc {
		return user(auth.RequireRole(models.RoleCandidate, models.RoleAdmin)(h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Public directory
	mux.HandleFunc("GET /elections", middleware.WithLogging(electionHandler.ListElections))
	mux.HandleFunc("GET /elections/{slug}", middleware.WithLogging(optional(electionHandler.GetElection)))
	mux.HandleFunc("GET /candidates", middleware.WithLogging(candidateHandler.ListCandidates))
	mux.HandleFunc("GET /candidates/{slug}", middleware.WithLogging(optional(candidateHandler.GetCandidate)))
	mux.HandleFunc("GET /vendors", middleware.WithLogging(vendorHandler.ListVendors))
	mux.HandleFunc("GET /vendors/{slug}", middleware.WithLogging(optional(vendorHandler.GetVendor)))
	mux.HandleFunc("GET /email/unsubscribe", middleware.WithLogging(userHandler.Unsubscribe))

	// Donations
	mux.HandleFunc("POST /candidates/{slug}/donations",
		middleware.WithLogging(middleware.RateLimit(deps.Limiter, optional(donationHandler.CreateDonation))))
	mux.HandleFunc("POST /webhooks/payments", middleware.WithLogging(donationHandler.Webhook))
	mux.HandleFunc("GET /donations/{id}/complete", middleware.WithLogging(donationHandler.CompleteLocal))

	// Signed-in users
	mux.HandleFunc("GET /me", middleware.WithLogging(user(userHandler.GetMe)))
	mux.HandleFunc("PUT /me", middleware.WithLogging(user(userHandler.UpdateMe)))
	mux.HandleFunc("GET /me/follows", middleware.WithLogging(user(userHandler.ListFollows)))
	mux.HandleFunc("GET /me/notifications", middleware.WithLogging(user(userHandler.ListNotifications)))
	mux.HandleFunc("POST /me/notifications/{id}/read", middleware.WithLogging(user(userHandler.MarkNotificationRead)))
	mux.HandleFunc("POST /candidates/{slug}/follow", middleware.WithLogging(user(userHandler.Follow)))
	mux.HandleFunc("DELETE /candidates/{slug}/follow", middleware.WithLogging(user(userHandler.Unfollow)))

	// Campaign self-service
	mux.HandleFunc("POST /candidates", middleware.WithLogging(user(candidateHandler.CreateCandidate)))
	mux.HandleFunc("PUT /candidates/{slug}", middleware.WithLogging(user(candidateHandler.UpdateCandidate)))
	mux.HandleFunc("POST /candidates/{slug}/posts", middleware.WithLogging(user(candidateHandler.CreatePost)))
	mux.HandleFunc("GET /candidates/{slug}/donations", middleware.WithLogging(user(candidateHandler.ListDonations)))

	// Vendor marketplace
	mux.HandleFunc("POST /vendors", middleware.WithLogging(user(vendorHandler.CreateVendor)))
	mux.HandleFunc("PUT /vendors/{slug}", middleware.WithLogging(user(vendorHandler.UpdateVendor)))
	mux.HandleFunc("POST /vendors/{slug}/inquiries", middleware.WithLogging(campaign(vendorHandler.CreateInquiry)))

	// Back office
	mux.HandleFunc("GET /admin/stats", middleware.WithLogging(admin(adminHandler.Stats)))
	mux.HandleFunc("POST /admin/elections", middleware.WithLogging(admin(electionHandler.CreateElection)))
	mux.HandleFunc("PUT /admin/elections/{slug}", middleware.WithLogging(admin(electionHandler.UpdateElection)))
	mux.HandleFunc("POST /admin/elections/{slug}/import", middleware.WithLogging(admin(adminHandler.ImportCandidates)))
	mux.HandleFunc("POST /admin/candidates/{id}/verify", middleware.WithLogging(admin(adminHandler.VerifyCandidate)))
	mux.HandleFunc("POST /admin/candidates/{id}/reject", middleware.WithLogging(admin(adminHandler.RejectCandidate)))
	mux.HandleFunc("POST /admin/vendors/{id}/approve", middleware.WithLogging(admin(adminHandler.ApproveVendor)))
	mux.HandleFunc("POST /admin/vendors/{id}/reject", middleware.WithLogging(admin(adminHandler.RejectVendor)))
	mux.HandleFunc("GET /admin/emails", middleware.WithLogging(admin(adminHandler.ListEmails)))
	mux.HandleFunc("POST /admin/emails/{id}/retry", middleware.WithLogging(admin(adminHandler.RetryEmail)))
	mux.HandleFunc("PUT /admin/users/{id}/role", middleware.WithLogging(admin(adminHandler.SetRole)))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ballotline API v1"))
	})

	return metrics.Middleware(middleware.CORS(mux))
}
