// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package worker

import (
	"context"
	"log/slog"
	"time"
)

// Func is one tick of background work
type Func func(ctx context.Context) error

// Run calls fn immediately and then every interval until ctx is done.
// Errors are logged and the loop keeps going.
func Run(ctx context.Context, name string, interval time.Duration, fn Func) {
	slog.Info("worker started", "worker", name, "interval", interval.String())
	defer slog.Info("worker stopped", "worker", name)

	tick(ctx, name, fn)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx, name, fn)
		}
	}
}

func tick(ctx context.Context, name string, fn Func) {
	start := time.Now()
	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("worker tick failed",
			"worker", name,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
