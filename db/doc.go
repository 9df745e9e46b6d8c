// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens connections and creates the schema.

	conn, err := db.Open(db.TypeSQLite, "ballotline.db")
	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Open supports PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite). SQLite
connections are limited to one at a time. CreateSchema is safe to call
repeatedly.

# Tables

  - app_user, election, candidate, candidate_post
  - follow, change_event, notification
  - vendor, vendor_inquiry
  - donation, email_queue, import_job

# Relationships

	election 1──* candidate 1──* candidate_post
	app_user *──* candidate (via follow)
	candidate 1──* change_event 1──* notification
	app_user 1──* vendor 1──* vendor_inquiry
	candidate 1──* donation
	election 1──* import_job
*/
package db
