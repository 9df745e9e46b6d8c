// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/ballotline/metrics"
	"github.com/danielhkuo/ballotline/models"
)

// Queue is the slice of the store the worker needs
type Queue interface {
	ClaimEmails(ctx context.Context, now time.Time, limit int) ([]models.Email, error)
	MarkEmailSent(ctx context.Context, id string, sentAt time.Time) error
	MarkEmailRetry(ctx context.Context, id string, next time.Time, lastErr string) error
	MarkEmailFailed(ctx context.Context, id string, lastErr string) error
}

const (
	defaultBatchSize = 50
	defaultBaseDelay = 30 * time.Second
	maxBackoff       = time.Hour
)

// Worker drains the email queue
type Worker struct {
	Queue       Queue
	Renderer    *Renderer
	Sender      Sender
	From        string
	MaxAttempts int
	Concurrency int
	BatchSize   int
	BaseDelay   time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// Backoff is the delay before the next try after the given number of attempts
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now().UTC()
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// RunOnce claims one batch of due emails and delivers them. It returns the
// number of emails it handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	batch := w.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	emails, err := w.Queue.ClaimEmails(ctx, w.now(), batch)
	if err != nil {
		return 0, err
	}
	if len(emails) == 0 {
		return 0, nil
	}

	// One failed store write must not cancel the rest of the batch
	var g errgroup.Group
	limit := w.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, e := range emails {
		g.Go(func() error {
			return w.deliver(ctx, e)
		})
	}
	return len(emails), g.Wait()
}

// deliver sends one claimed email and records the outcome. Only store
// errors are returned; delivery errors are written to the row.
func (w *Worker) deliver(ctx context.Context, e models.Email) error {
	log := w.logger().With("email_id", e.ID, "kind", e.Kind, "attempt", e.Attempts)

	msg, err := w.Renderer.Render(e.Kind, e.Payload)
	if err != nil {
		log.Error("email cannot be rendered", "error", err)
		metrics.EmailsFailed.Inc()
		return w.Queue.MarkEmailFailed(ctx, e.ID, err.Error())
	}
	msg.To = e.ToAddr
	msg.From = w.From

	sendErr := w.Sender.Send(ctx, msg)
	if sendErr == nil {
		metrics.EmailsSent.Inc()
		return w.Queue.MarkEmailSent(ctx, e.ID, w.now())
	}

	var perm *PermanentError
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if errors.As(sendErr, &perm) || e.Attempts >= maxAttempts {
		log.Error("email delivery failed", "error", sendErr)
		metrics.EmailsFailed.Inc()
		return w.Queue.MarkEmailFailed(ctx, e.ID, sendErr.Error())
	}

	base := w.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	next := w.now().Add(Backoff(base, e.Attempts))
	log.Warn("email delivery failed, will retry", "error", sendErr, "next_attempt_at", next)
	metrics.EmailsRetried.Inc()
	if err := w.Queue.MarkEmailRetry(ctx, e.ID, next, sendErr.Error()); err != nil {
		return fmt.Errorf("failed to reschedule email %s: %w", e.ID, err)
	}
	return nil
}
