// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Ballotline API server.

Ballotline is a civic platform where voters browse upcoming elections,
follow candidates and donate to campaigns, and where vendors list services
for campaigns to hire.

# Starting the Server

The server reads flags, then the environment (a .env file is loaded when
present), then an optional YAML config file:

	DATABASE_URL=postgres://... LINK_SIGNING_SALT=... AUTH_JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t sqlite -d ballotline.db -c ballotline.yaml

# Configuration

Required settings:

  - DATABASE_URL (-d): PostgreSQL or SQLite connection string
  - LINK_SIGNING_SALT (--link-salt): Secret for unsubscribe links and IP hashes
  - AUTH_JWT_SECRET (--jwt-secret): Shared secret of the auth provider

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): postgres (default) or sqlite
  - REDIS_URL: Share rate limits across instances
  - EMAIL_PROVIDER, PAYMENTS_PROVIDER: log/resend and local/stripe
  - LOG_FORMAT, LOG_LEVEL: json or text, debug through error

# Background Workers

Alongside the HTTP server the process runs the change-event fan-out, the
email queue worker and a queue depth gauge, each on WORKER_INTERVAL. On
SIGINT or SIGTERM the server drains requests and the workers stop.

# Architecture

  - handlers: HTTP request handlers (elections, candidates, vendors, donations, admin)
  - router: Route definitions using Go 1.22+ routing
  - auth: Bearer token verification, roles, slugs and signed links
  - store: Data access for every table
  - notify: Fans change events out to followers
  - email: Templates, senders and the outbound queue worker
  - payments: Checkout providers and webhook signatures
  - ingest: Candidate spreadsheet imports
  - middleware: CORS, logging, rate limiting, JSON helpers
  - metrics: Prometheus collectors
  - db: Schema creation
  - cliparse: Configuration parsing and logger setup

Operator tasks live in cmd/ballotctl.
*/
package main
