// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/ballotline/models"
)

const emailColumns = "id, to_addr, kind, payload, status, attempts, last_error, next_attempt_at, created_at, sent_at"

func scanEmail(row scanner) (models.Email, error) {
	var e models.Email
	err := row.Scan(&e.ID, &e.ToAddr, &e.Kind, &e.Payload, &e.Status, &e.Attempts, &e.LastError,
		&e.NextAttemptAt, &e.CreatedAt, &e.SentAt)
	return e, err
}

// EnqueueEmail adds a pending email, due immediately unless NextAttemptAt is set
func (s *Store) EnqueueEmail(ctx context.Context, ex Execer, e models.Email) error {
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = now
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO email_queue (id, to_addr, kind, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6)
	`, e.ID, e.ToAddr, e.Kind, e.Payload, e.NextAttemptAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}

// ClaimEmails moves up to limit due pending emails to sending and returns
// them. The status check in the outer WHERE keeps concurrent workers from
// claiming the same row.
func (s *Store) ClaimEmails(ctx context.Context, now time.Time, limit int) ([]models.Email, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE email_queue
		SET status = 'sending', attempts = attempts + 1
		WHERE status = 'pending' AND id IN (
			SELECT id FROM email_queue
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $2
		)
		RETURNING id`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim emails: %w", err)
	}

	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan claimed id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to claim emails: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	for i := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	rows, err = s.db.QueryContext(ctx, `SELECT `+emailColumns+` FROM email_queue WHERE id IN (`+
		strings.Join(placeholders, ", ")+`) ORDER BY next_attempt_at`, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed emails: %w", err)
	}
	defer rows.Close()

	var emails []models.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (s *Store) MarkEmailSent(ctx context.Context, id string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'sent', sent_at = $1, last_error = NULL WHERE id = $2
	`, sentAt, id)
	return expectOne(res, err, "email")
}

// MarkEmailRetry returns a claimed email to the queue to try again later
func (s *Store) MarkEmailRetry(ctx context.Context, id string, next time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'pending', next_attempt_at = $1, last_error = $2 WHERE id = $3
	`, next, lastErr, id)
	return expectOne(res, err, "email")
}

func (s *Store) MarkEmailFailed(ctx context.Context, id string, lastErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'failed', last_error = $1 WHERE id = $2
	`, lastErr, id)
	return expectOne(res, err, "email")
}

// RetryEmail requeues a failed email with a fresh attempt budget
func (s *Store) RetryEmail(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'pending', attempts = 0, next_attempt_at = $1
		WHERE id = $2 AND status = 'failed'
	`, s.now(), id)
	return expectOne(res, err, "email")
}

// RetryAllFailed requeues every failed email and returns how many
func (s *Store) RetryAllFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'pending', attempts = 0, next_attempt_at = $1
		WHERE status = 'failed'
	`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue emails: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseStaleSending returns emails stuck in sending (e.g. after a crash)
// to the queue
func (s *Store) ReleaseStaleSending(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_queue SET status = 'pending'
		WHERE status = 'sending' AND next_attempt_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to release emails: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) ListEmails(ctx context.Context, status string, limit int) ([]models.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM email_queue`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	emails := []models.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (s *Store) CountEmailsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM email_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}
	return countGroups(rows)
}
