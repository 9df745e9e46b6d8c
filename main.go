// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/db"
	"github.com/danielhkuo/ballotline/email"
	"github.com/danielhkuo/ballotline/metrics"
	"github.com/danielhkuo/ballotline/middleware"
	"github.com/danielhkuo/ballotline/notify"
	"github.com/danielhkuo/ballotline/payments"
	"github.com/danielhkuo/ballotline/router"
	"github.com/danielhkuo/ballotline/store"
	"github.com/danielhkuo/ballotline/worker"
)

// staleSendingAfter is how long an email may sit in sending before a
// restart returns it to the queue
const staleSendingAfter = 10 * time.Minute

func main() {
	var err error

	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env")
	}
	slog.SetDefault(cliparse.NewLogger(os.Stderr, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL")))

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the database
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	st := store.New(dbConn)

	renderer, err := email.NewRenderer()
	if err != nil {
		slog.Error("email templates failed to load", "error", err)
		os.Exit(1)
	}
	sender, err := email.NewSender(cfg.EmailProvider, cfg.EmailAPIKey)
	if err != nil {
		slog.Error("email sender setup failed", "error", err)
		os.Exit(1)
	}
	provider, err := payments.NewProvider(cfg.PaymentsProvider, cfg.PaymentsAPIKey, cfg.BaseURL)
	if err != nil {
		slog.Error("payments provider setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var workers errgroup.Group

	// Rate limiting is shared through Redis when configured
	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		rl, err := middleware.NewRedisLimiter(cfg.RedisURL, cfg.RateLimitRPS, cfg.RateLimitBurst)
		if err != nil {
			slog.Error("redis limiter setup failed", "error", err)
			os.Exit(1)
		}
		if err := rl.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, requests will not be limited until it recovers", "error", err)
		}
		defer rl.Close()
		limiter = rl
	} else {
		ml := middleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		limiter = ml
		workers.Go(func() error {
			worker.Run(ctx, "ratelimit-sweep", time.Minute, func(ctx context.Context) error {
				if n := ml.Sweep(); n > 0 {
					slog.Debug("rate limiter swept", "removed", n)
				}
				return nil
			})
			return nil
		})
	}

	// Emails left in sending by a crash go back to the queue
	if n, err := st.ReleaseStaleSending(ctx, time.Now().UTC().Add(-staleSendingAfter)); err != nil {
		slog.Error("failed to release stale emails", "error", err)
	} else if n > 0 {
		slog.Warn("released stale emails", "count", n)
	}

	mailer := &email.Worker{
		Queue:       st,
		Renderer:    renderer,
		Sender:      sender,
		From:        cfg.EmailFrom,
		MaxAttempts: cfg.EmailMaxAttempts,
		Concurrency: cfg.EmailConcurrency,
	}
	fanout := &notify.Fanout{
		Store:    st,
		BaseURL:  cfg.BaseURL,
		LinkSalt: cfg.LinkSigningSalt,
	}

	workers.Go(func() error {
		worker.Run(ctx, "fanout", cfg.WorkerInterval, func(ctx context.Context) error {
			_, err := fanout.RunOnce(ctx)
			return err
		})
		return nil
	})
	workers.Go(func() error {
		worker.Run(ctx, "email", cfg.WorkerInterval, func(ctx context.Context) error {
			_, err := mailer.RunOnce(ctx)
			return err
		})
		return nil
	})
	workers.Go(func() error {
		worker.Run(ctx, "queue-depth", cfg.WorkerInterval, func(ctx context.Context) error {
			counts, err := st.CountEmailsByStatus(ctx)
			if err != nil {
				return err
			}
			metrics.SetQueueDepth(counts)
			return nil
		})
		return nil
	})

	// Create router
	verifier := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthAudience)
	handler := router.NewRouter(st, cfg, router.Deps{
		Auth:     auth.NewAuthenticator(verifier, st, cfg.IsAdminEmail),
		Limiter:  limiter,
		Payments: provider,
	})

	// Create server
	server := http.Server{
		Handler:           handler,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "email_provider", cfg.EmailProvider, "payments_provider", cfg.PaymentsProvider)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}

	cancel()
	workers.Wait()
}
