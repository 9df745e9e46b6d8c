// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/danielhkuo/ballotline/models"
)

func (s *Store) CreateImportJob(ctx context.Context, ex Execer, j models.ImportJob) error {
	errs, err := json.Marshal(j.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode import errors: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO import_job (id, election_id, filename, total_rows, imported, skipped, errors, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, j.ID, j.ElectionID, j.Filename, j.TotalRows, j.Imported, j.Skipped, string(errs), j.CreatedBy, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert import job: %w", err)
	}
	return nil
}

// Stats gathers the admin dashboard counters
func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	var err error

	if st.Users, err = s.CountUsersByRole(ctx); err != nil {
		return st, err
	}
	if st.Elections, err = s.CountElections(ctx); err != nil {
		return st, err
	}
	if st.CandidatesByStatus, err = s.CountCandidatesByStatus(ctx); err != nil {
		return st, err
	}
	if st.VendorsByStatus, err = s.CountVendorsByStatus(ctx); err != nil {
		return st, err
	}
	if st.DonationsPaidCents, err = s.SumPaidDonations(ctx); err != nil {
		return st, err
	}
	if st.EmailsByStatus, err = s.CountEmailsByStatus(ctx); err != nil {
		return st, err
	}
	if st.PendingEvents, err = s.CountPendingEvents(ctx); err != nil {
		return st, err
	}
	return st, nil
}
