// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/db"
	"github.com/danielhkuo/ballotline/email"
	"github.com/danielhkuo/ballotline/ingest"
	"github.com/danielhkuo/ballotline/notify"
	"github.com/danielhkuo/ballotline/store"
)

// importActor is recorded as created_by on import jobs run from the CLI
const importActor = "ballotctl"

func newSchemaCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create any missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.CreateSchema(e.conn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", e.cfg.DatabaseType)
			return nil
		},
	}
}

func newImportCmd(e *env) *cobra.Command {
	var electionSlug string

	cmd := &cobra.Command{
		Use:   "import --election <slug> <file>",
		Short: "Import a candidate CSV or TSV file into an election",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			election, err := e.st.GetElectionBySlug(ctx, electionSlug)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("election %q not found", electionSlug)
			} else if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := ingest.NewImporter(e.st).Import(ctx, election.ID, importActor, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d of %d rows into %s (%d skipped)\n",
				report.Imported, report.Total, election.Slug, report.Skipped)
			for _, msg := range report.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&electionSlug, "election", "", "Election slug")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}

func newEmailsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Inspect and drive the outbound email queue",
	}
	cmd.AddCommand(newEmailsRetryCmd(e))
	cmd.AddCommand(newEmailsSendCmd(e))
	return cmd
}

func newEmailsRetryCmd(e *env) *cobra.Command {
	var allFailed bool

	cmd := &cobra.Command{
		Use:   "retry [id]",
		Short: "Requeue failed emails",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case allFailed && len(args) > 0:
				return errors.New("pass an email id or --all-failed, not both")
			case allFailed:
				n, err := e.st.RetryAllFailed(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "requeued %d emails\n", n)
				return nil
			case len(args) == 1:
				err := e.st.RetryEmail(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no failed email with id %q", args[0])
				} else if err != nil {
					return err
				}
				fmt.Fprintf(out, "requeued %s\n", args[0])
				return nil
			default:
				return errors.New("an email id or --all-failed is required")
			}
		},
	}
	cmd.Flags().BoolVar(&allFailed, "all-failed", false, "Requeue every failed email")
	return cmd
}

func newEmailsSendCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Deliver one batch of due emails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := email.NewRenderer()
			if err != nil {
				return err
			}
			sender, err := email.NewSender(e.cfg.EmailProvider, e.cfg.EmailAPIKey)
			if err != nil {
				return err
			}

			mailer := &email.Worker{
				Queue:       e.st,
				Renderer:    renderer,
				Sender:      sender,
				From:        e.cfg.EmailFrom,
				MaxAttempts: e.cfg.EmailMaxAttempts,
				Concurrency: e.cfg.EmailConcurrency,
			}
			n, err := mailer.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d emails\n", n)
			return nil
		},
	}
}

func newFanoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "fanout",
		Short: "Fan out one batch of pending candidate change events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fanout := &notify.Fanout{
				Store:    e.st,
				BaseURL:  e.cfg.BaseURL,
				LinkSalt: e.cfg.LinkSigningSalt,
			}
			n, err := fanout.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fanned out %d events\n", n)
			return nil
		},
	}
}

// newTokenCmd signs a bearer token with the configured secret, for local
// development against the API without a real auth provider
func newTokenCmd(e *env) *cobra.Command {
	var subject, emailAddr, name string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = subject
			}
			v := auth.NewVerifier(e.cfg.AuthJWTSecret, e.cfg.AuthIssuer, e.cfg.AuthAudience)
			token, err := v.Issue(subject, emailAddr, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject claim")
	cmd.Flags().StringVar(&emailAddr, "email", "", "Email claim")
	cmd.Flags().StringVar(&name, "name", "", "Display name claim (default subject)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
