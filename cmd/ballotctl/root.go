// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/ballotline/cliparse"
	"github.com/danielhkuo/ballotline/db"
	"github.com/danielhkuo/ballotline/store"
)

// env is the state shared by every subcommand once the root has loaded
// configuration and connected
type env struct {
	configPath   string
	databaseURL  string
	databaseType string

	cfg  cliparse.Config
	conn *sql.DB
	st   *store.Store
}

// flagArgs turns the persistent flags into arguments for cliparse so the
// CLI follows the same precedence as the server
func (e *env) flagArgs() []string {
	var args []string
	if e.configPath != "" {
		args = append(args, "-c", e.configPath)
	}
	if e.databaseURL != "" {
		args = append(args, "-d", e.databaseURL)
	}
	if e.databaseType != "" {
		args = append(args, "-t", e.databaseType)
	}
	return args
}

func newRootCmd() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:   "ballotctl",
		Short: "Ballotline operator tools",
		Long: `ballotctl runs maintenance tasks against a Ballotline database.

Configuration is read the same way as the server: flags, then the
environment (and an optional .env file), then the YAML config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			slog.SetDefault(cliparse.NewLogger(cmd.ErrOrStderr(), os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL")))

			cfg, err := cliparse.ParseFlags(e.flagArgs())
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.conn = conn
			e.st = store.New(conn)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.conn != nil {
				return e.conn.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&e.databaseURL, "database-url", "d", "", "Database URL (default $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&e.databaseType, "database-type", "t", "", "Database type, postgres or sqlite")

	rootCmd.AddCommand(newSchemaCmd(e))
	rootCmd.AddCommand(newImportCmd(e))
	rootCmd.AddCommand(newEmailsCmd(e))
	rootCmd.AddCommand(newFanoutCmd(e))
	rootCmd.AddCommand(newTokenCmd(e))

	return rootCmd
}
