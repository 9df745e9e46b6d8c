// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/ballotline/models"
)

// Follow subscribes userID to a candidate. Following again only updates
// the email preference.
func (s *Store) Follow(ctx context.Context, userID, candidateID string, notifyEmail bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follow (user_id, candidate_id, notify_email, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, candidate_id) DO UPDATE SET notify_email = excluded.notify_email
	`, userID, candidateID, notifyEmail, s.now())
	if err != nil {
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	return nil
}

func (s *Store) Unfollow(ctx context.Context, userID, candidateID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM follow WHERE user_id = $1 AND candidate_id = $2`, userID, candidateID)
	return expectOne(res, err, "follow")
}

func (s *Store) CountFollowers(ctx context.Context, candidateID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follow WHERE candidate_id = $1`, candidateID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return n, nil
}

// ListFollowersForFanout returns everyone following a candidate with their
// email settings
func (s *Store) ListFollowersForFanout(ctx context.Context, candidateID string) ([]models.Follower, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, f.notify_email, u.email_opt_out
		FROM follow f
		JOIN app_user u ON u.id = f.user_id
		WHERE f.candidate_id = $1
		ORDER BY f.created_at
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query followers: %w", err)
	}
	defer rows.Close()

	var followers []models.Follower
	for rows.Next() {
		var f models.Follower
		if err := rows.Scan(&f.UserID, &f.Email, &f.NotifyEmail, &f.EmailOptOut); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		followers = append(followers, f)
	}
	return followers, rows.Err()
}

// ListFollowedCandidates returns the candidates userID follows
func (s *Store) ListFollowedCandidates(ctx context.Context, userID string) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.owner_id, c.election_id, c.slug, c.name, c.office, c.district, c.party, c.bio,
		       c.website, c.photo_url, c.contact_email, c.status, c.donations_enabled, c.created_at, c.updated_at
		FROM follow f
		JOIN candidate c ON c.id = f.candidate_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query follows: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// InsertChangeEvent records something followers should hear about
func (s *Store) InsertChangeEvent(ctx context.Context, ex Execer, e models.ChangeEvent) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO change_event (id, candidate_id, kind, summary, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.CandidateID, e.Kind, e.Summary, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert change event: %w", err)
	}
	return nil
}

// ListPendingEvents returns the oldest events not yet fanned out
func (s *Store) ListPendingEvents(ctx context.Context, limit int) ([]models.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, candidate_id, kind, summary, created_at
		FROM change_event
		WHERE fanout_done_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query change events: %w", err)
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var e models.ChangeEvent
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.Kind, &e.Summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) CountPendingEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_event WHERE fanout_done_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count change events: %w", err)
	}
	return n, nil
}

// CompleteFanout stores the notifications and emails for an event and marks
// it done in one transaction. ErrConflict means another worker got there first.
func (s *Store) CompleteFanout(ctx context.Context, eventID string, notes []models.Notification, emails []models.Email) error {
	return s.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE change_event SET fanout_done_at = $1
			WHERE id = $2 AND fanout_done_at IS NULL
		`, s.now(), eventID)
		if err != nil {
			return fmt.Errorf("failed to mark change event: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to mark change event: %w", err)
		} else if n == 0 {
			return ErrConflict
		}

		for _, n := range notes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO notification (id, user_id, event_id, candidate_id, message, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (user_id, event_id) DO NOTHING
			`, n.ID, n.UserID, n.EventID, n.CandidateID, n.Message, n.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert notification: %w", err)
			}
		}

		for _, e := range emails {
			if err := s.EnqueueEmail(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, event_id, candidate_id, message, read_at, created_at
		FROM notification
		WHERE user_id = $1`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notes := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventID, &n.CandidateID, &n.Message, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkNotificationRead is scoped to the owner so users cannot touch others' rows
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification SET read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND user_id = $3
	`, s.now(), id, userID)
	return expectOne(res, err, "notification")
}
