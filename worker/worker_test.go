// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Run(ctx, "test", 5*time.Millisecond, func(ctx context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return nil
		})
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("Run did not stop after cancel")
	}
	if calls.Load() < 3 {
		t.Errorf("expected at least 3 ticks, got %d", calls.Load())
	}
}

func TestRun_RunsImmediatelyAndSurvivesErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan struct{})
	var calls atomic.Int32
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		// an hour-long interval means only the immediate tick can run
		Run(ctx, "failing", time.Hour, func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				close(first)
			}
			return errors.New("boom")
		})
	}()

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick did not run immediately")
	}
	cancel()
	<-stopped

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 tick, got %d", calls.Load())
	}
}
