// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Ballotline API.

# Handler Types

Each handler is a struct holding the store and config:

  - ElectionHandler: Election listing, detail and admin edits
  - CandidateHandler: Profiles, posts and a campaign's donation list
  - UserHandler: The signed-in user, follows, notifications, unsubscribe
  - VendorHandler: Vendor directory, listings and campaign inquiries
  - DonationHandler: Checkout creation and payment webhooks
  - AdminHandler: Moderation, imports, the email queue and roles

Handlers are created via constructor functions:

	candidates := handlers.NewCandidateHandler(st, cfg)
	donations := handlers.NewDonationHandler(st, cfg, provider)

The signed-in user comes from auth.UserFromContext; the router decides
which routes require one.

# Change Events

Edits a follower should hear about (a verified profile changing, a new
post, an election date moving) insert a change event in the same
transaction as the edit. The notify package fans them out later.

# Donations

A donation is created pending, then sent to the payments provider for a
checkout session. The webhook (or the local completion route in
development) settles it exactly once; redeliveries report "duplicate".
Pending and paid amounts count toward the per-donor contribution limit.
*/
package handlers
