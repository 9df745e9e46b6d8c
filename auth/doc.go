// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication, identifiers and signed links.

# Bearer Tokens

Users sign in with an external provider that issues HS256 JWTs. The
Verifier checks the signature, expiry and the optional issuer and
audience, and requires a subject:

	v := auth.NewVerifier(secret, issuer, audience)
	claims, err := v.Verify(token)

An Authenticator turns a verified token into a stored user. Emails listed
as admins in the config are upserted with the admin role:

	a := auth.NewAuthenticator(v, st, cfg.IsAdminEmail)
	mux.HandleFunc("GET /me", a.RequireUser(handler))
	mux.HandleFunc("GET /admin/stats", a.RequireUser(auth.RequireRole(models.RoleAdmin)(handler)))

# Slugs

	auth.Slugify("General Élection 2026") // "general-election-2026"
	slug, err := auth.UniqueSlug("Ada Lovelace") // "ada-lovelace-3f9a1c"

# Unsubscribe Links

Links carry the user ID and an HMAC-SHA256 signature, so they need no
storage:

	token := auth.GenerateUnsubscribeToken(userID, salt)
	userID, err := auth.ParseUnsubscribeToken(token, salt)

# ID Generation

	id := auth.NewID()               // UUID for records
	hex, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

Donations store a salted hash of the client address, never the address:

	hash := auth.HashIP(ipAddress, salt)
*/
package auth
