// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/email"
	"github.com/danielhkuo/ballotline/metrics"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

// Store is what fan-out reads and writes
type Store interface {
	ListPendingEvents(ctx context.Context, limit int) ([]models.ChangeEvent, error)
	GetCandidate(ctx context.Context, id string) (models.Candidate, error)
	ListFollowersForFanout(ctx context.Context, candidateID string) ([]models.Follower, error)
	CompleteFanout(ctx context.Context, eventID string, notes []models.Notification, emails []models.Email) error
}

const defaultBatchSize = 100

// Fanout turns change events into notifications and follower emails
type Fanout struct {
	Store     Store
	BaseURL   string
	LinkSalt  string
	BatchSize int
	Now       func() time.Time
	Logger    *slog.Logger
}

func (f *Fanout) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}

func (f *Fanout) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Message is the in-app text for an event
func Message(c models.Candidate, e models.ChangeEvent) string {
	if e.Summary != "" {
		return e.Summary
	}
	switch e.Kind {
	case models.EventPostPublished:
		return c.Name + " published a new post"
	case models.EventElectionChanged:
		return "The election " + c.Name + " is running in has changed"
	default:
		return c.Name + " updated their profile"
	}
}

// UnsubscribeURL is the one-click opt-out link for userID
func (f *Fanout) UnsubscribeURL(userID string) string {
	token := auth.GenerateUnsubscribeToken(userID, f.LinkSalt)
	return f.BaseURL + "/email/unsubscribe?token=" + url.QueryEscape(token)
}

// RunOnce fans out one batch of pending events and returns how many were
// completed. Events already completed elsewhere are skipped.
func (f *Fanout) RunOnce(ctx context.Context) (int, error) {
	batch := f.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	events, err := f.Store.ListPendingEvents(ctx, batch)
	if err != nil {
		return 0, err
	}

	var errs []error
	done := 0
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		ok, err := f.fanout(ctx, e)
		if err != nil {
			f.logger().Error("fan-out failed", "event_id", e.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			done++
		}
	}
	return done, errors.Join(errs...)
}

func (f *Fanout) fanout(ctx context.Context, e models.ChangeEvent) (bool, error) {
	candidate, err := f.Store.GetCandidate(ctx, e.CandidateID)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing to deliver, just close the event out
		return f.complete(ctx, e, nil, nil)
	}
	if err != nil {
		return false, err
	}

	followers, err := f.Store.ListFollowersForFanout(ctx, candidate.ID)
	if err != nil {
		return false, err
	}

	now := f.now()
	msg := Message(candidate, e)
	profileURL := f.BaseURL + "/candidates/" + candidate.Slug

	notes := make([]models.Notification, 0, len(followers))
	var emails []models.Email
	for _, fl := range followers {
		notes = append(notes, models.Notification{
			ID:          uuid.NewString(),
			UserID:      fl.UserID,
			EventID:     e.ID,
			CandidateID: candidate.ID,
			Message:     msg,
			CreatedAt:   now,
		})

		if !fl.NotifyEmail || fl.EmailOptOut || fl.Email == "" {
			continue
		}
		m, err := email.NewMessage(fl.Email, email.KindCandidateUpdate, map[string]any{
			"CandidateName":  candidate.Name,
			"Summary":        msg,
			"ProfileURL":     profileURL,
			"UnsubscribeURL": f.UnsubscribeURL(fl.UserID),
		})
		if err != nil {
			return false, fmt.Errorf("build email for %s: %w", fl.UserID, err)
		}
		m.CreatedAt = now
		m.NextAttemptAt = now
		emails = append(emails, m)
	}

	return f.complete(ctx, e, notes, emails)
}

func (f *Fanout) complete(ctx context.Context, e models.ChangeEvent, notes []models.Notification, emails []models.Email) (bool, error) {
	err := f.Store.CompleteFanout(ctx, e.ID, notes, emails)
	if errors.Is(err, store.ErrConflict) {
		f.logger().Debug("change event already fanned out", "event_id", e.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	metrics.EventsFannedOut.Inc()
	metrics.NotificationsCreated.Add(float64(len(notes)))
	f.logger().Info("change event fanned out",
		"event_id", e.ID,
		"kind", e.Kind,
		"notifications", len(notes),
		"emails", len(emails),
	)
	return true, nil
}
