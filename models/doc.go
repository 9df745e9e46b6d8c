// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - User: a signed-in account and its role
  - Election, Candidate, Post: the ballot and what campaigns publish
  - Follower, ChangeEvent, Notification: following and its fan-out
  - Vendor, Inquiry: the vendor directory
  - Donation: one contribution and its payment state
  - Email: a row of the outbound queue
  - ImportJob: the record of a candidate import

# Status Values

Candidates move pending → verified | rejected, vendors pending → approved
| rejected, donations pending → paid | failed, and queued emails pending →
sending → sent | failed.

Roles are voter, candidate, vendor and admin.
*/
package models
