// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration and logger setup.

# Configuration

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Each setting is resolved from its CLI flag, then its environment variable,
then the YAML file named by -c or CONFIG_FILE, then a default. Secrets are
never read from the file.

# CLI Flags

	-p             Server port
	-d             Database URL
	-t             Database type (postgres or sqlite)
	-c             YAML config file
	--base-url     Public base URL
	--link-salt    Link signing salt
	--jwt-secret   Auth provider JWT secret
	--admin-emails Comma separated admin emails

# Validation

ParseFlags returns an error when DATABASE_URL, LINK_SIGNING_SALT or
AUTH_JWT_SECRET is missing, when a real email or payments provider has no
API key, or when a number or duration does not parse.

# Logging

	slog.SetDefault(cliparse.NewLogger(os.Stderr, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL")))
*/
package cliparse
