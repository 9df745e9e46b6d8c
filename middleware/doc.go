// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs one line per request with method, path, status, remote and
duration_ms. Server errors log at error level.

# CORS Middleware

	server := http.Server{Handler: middleware.CORS(mux)}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers Content-Type
and Authorization.

# Rate Limiting

RateLimit rejects requests over the limit with 429, keyed by client IP and
route. MemoryLimiter keeps token buckets in process; RedisLimiter keeps
them in Redis so instances share one budget:

	limiter := middleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	mux.HandleFunc("POST /candidates/{slug}/donations", middleware.RateLimit(limiter, handler))

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.DonationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Honors X-Forwarded-For and X-Real-IP.
*/
package middleware
