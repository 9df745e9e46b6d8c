// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Ballotline API.

	handler := router.NewRouter(st, cfg, router.Deps{
		Auth:     auth.NewAuthenticator(verifier, st, cfg.IsAdminEmail),
		Limiter:  limiter,
		Payments: provider,
	})

The returned handler records Prometheus metrics and applies CORS.

# Endpoints

Operational:

	GET /health
	GET /metrics

Public (a bearer token is optional and widens visibility):

	GET  /elections, /elections/{slug}
	GET  /candidates, /candidates/{slug}
	GET  /vendors, /vendors/{slug}
	GET  /email/unsubscribe?token=...
	POST /candidates/{slug}/donations  (rate limited)
	POST /webhooks/payments
	GET  /donations/{id}/complete      (local payments only)

Signed in:

	GET|PUT /me
	GET     /me/follows, /me/notifications
	POST    /me/notifications/{id}/read
	POST|DELETE /candidates/{slug}/follow
	POST    /candidates, PUT /candidates/{slug}
	POST    /candidates/{slug}/posts
	GET     /candidates/{slug}/donations
	POST    /vendors, PUT /vendors/{slug}

Campaigns (candidate or admin role):

	POST /vendors/{slug}/inquiries

Admin:

	GET  /admin/stats
	POST /admin/elections, PUT /admin/elections/{slug}
	POST /admin/elections/{slug}/import
	POST /admin/candidates/{id}/verify, /admin/candidates/{id}/reject
	POST /admin/vendors/{id}/approve, /admin/vendors/{id}/reject
	GET  /admin/emails, POST /admin/emails/{id}/retry
	PUT  /admin/users/{id}/role
*/
package router
