// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/ballotline/models"
)

const donationColumns = "id, candidate_id, donor_user_id, donor_name, donor_email, employer, occupation, amount_cents, currency, status, provider_session_id, ip_hash, created_at, paid_at"

func scanDonation(row scanner) (models.Donation, error) {
	var d models.Donation
	err := row.Scan(&d.ID, &d.CandidateID, &d.DonorUserID, &d.DonorName, &d.DonorEmail, &d.Employer,
		&d.Occupation, &d.AmountCents, &d.Currency, &d.Status, &d.ProviderSessionID, &d.IPHash,
		&d.CreatedAt, &d.PaidAt)
	return d, err
}

// CreateDonationWithinLimit inserts d unless the donor's pending and paid
// total for the candidate plus d.AmountCents would pass limit, in which case
// it returns ErrLimitExceeded. The candidate row is locked first so checkouts
// from the same donor serialize on both drivers.
func (s *Store) CreateDonationWithinLimit(ctx context.Context, d models.Donation, limit int64) error {
	return s.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE candidate SET updated_at = updated_at WHERE id = $1`, d.CandidateID)
		if err := expectOne(res, err, "candidate"); err != nil {
			return err
		}

		var total int64
		if err := tx.QueryRowContext(ctx, donorTotalQuery, d.CandidateID, strings.ToLower(d.DonorEmail)).Scan(&total); err != nil {
			return fmt.Errorf("failed to sum donations: %w", err)
		}
		if d.AmountCents > limit-total {
			return ErrLimitExceeded
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO donation (id, candidate_id, donor_user_id, donor_name, donor_email, employer, occupation,
			                      amount_cents, currency, status, ip_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, d.ID, d.CandidateID, d.DonorUserID, d.DonorName, strings.ToLower(d.DonorEmail), d.Employer, d.Occupation,
			d.AmountCents, d.Currency, d.Status, d.IPHash, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert donation: %w", err)
		}
		return nil
	})
}

func (s *Store) AttachCheckoutSession(ctx context.Context, donationID, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE donation SET provider_session_id = $1 WHERE id = $2`, sessionID, donationID)
	return expectOne(res, err, "donation")
}

func (s *Store) GetDonationBySession(ctx context.Context, sessionID string) (models.Donation, error) {
	d, err := scanDonation(s.db.QueryRowContext(ctx, `SELECT `+donationColumns+` FROM donation WHERE provider_session_id = $1`, sessionID))
	if err != nil {
		return models.Donation{}, notFound(err, "donation")
	}
	return d, nil
}

// MarkDonationPaid moves a pending donation to paid and enqueues the given
// emails atomically. ErrConflict means the donation was not pending.
func (s *Store) MarkDonationPaid(ctx context.Context, id string, paidAt time.Time, emails []models.Email) error {
	return s.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE donation SET status = 'paid', paid_at = $1
			WHERE id = $2 AND status = 'pending'
		`, paidAt, id)
		if err != nil {
			return fmt.Errorf("failed to update donation: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to update donation: %w", err)
		} else if n == 0 {
			return ErrConflict
		}

		for _, e := range emails {
			if err := s.EnqueueEmail(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkDonationFailed only touches pending donations
func (s *Store) MarkDonationFailed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE donation SET status = 'failed' WHERE id = $1 AND status = 'pending'`, id)
	if err := expectOne(res, err, "donation"); err == ErrNotFound {
		return ErrConflict
	} else if err != nil {
		return err
	}
	return nil
}

// ListDonations returns a candidate's donations, newest first
func (s *Store) ListDonations(ctx context.Context, candidateID string) ([]models.Donation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+donationColumns+`
		FROM donation
		WHERE candidate_id = $1
		ORDER BY created_at DESC
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query donations: %w", err)
	}
	defer rows.Close()

	donations := []models.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

const donorTotalQuery = `
	SELECT COALESCE(SUM(amount_cents), 0)
	FROM donation
	WHERE candidate_id = $1 AND donor_email = $2 AND status IN ('pending', 'paid')
`

// DonorTotal sums the paid and pending donations from email to a candidate
func (s *Store) DonorTotal(ctx context.Context, candidateID, email string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, donorTotalQuery, candidateID, strings.ToLower(email)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum donations: %w", err)
	}
	return total, nil
}

func (s *Store) SumPaidDonations(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM donation WHERE status = 'paid'`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum donations: %w", err)
	}
	return total, nil
}
