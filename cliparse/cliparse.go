package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	BaseURL      string

	// Secrets
	LinkSigningSalt string
	AuthJWTSecret   string
	AuthIssuer      string
	AuthAudience    string
	AdminEmails     []string

	EmailProvider string
	EmailAPIKey   string
	EmailFrom     string

	PaymentsProvider      string
	PaymentsAPIKey        string
	PaymentsWebhookSecret string

	RedisURL       string
	RateLimitRPS   int
	RateLimitBurst int

	ContributionLimitCents int64
	MinDonationCents       int64
	VendorCategories       []string

	WorkerInterval   time.Duration
	EmailMaxAttempts int
	EmailConcurrency int
}

// fileConfig mirrors the optional YAML config file. Every value can be
// overridden by the environment or a CLI flag.
type fileConfig struct {
	Port                   int      `yaml:"port"`
	DatabaseURL            string   `yaml:"database_url"`
	DatabaseType           string   `yaml:"database_type"`
	BaseURL                string   `yaml:"base_url"`
	AuthIssuer             string   `yaml:"auth_issuer"`
	AuthAudience           string   `yaml:"auth_audience"`
	AdminEmails            []string `yaml:"admin_emails"`
	EmailProvider          string   `yaml:"email_provider"`
	EmailFrom              string   `yaml:"email_from"`
	PaymentsProvider       string   `yaml:"payments_provider"`
	RedisURL               string   `yaml:"redis_url"`
	RateLimitRPS           int      `yaml:"rate_limit_rps"`
	RateLimitBurst         int      `yaml:"rate_limit_burst"`
	ContributionLimitCents int64    `yaml:"contribution_limit_cents"`
	MinDonationCents       int64    `yaml:"min_donation_cents"`
	VendorCategories       []string `yaml:"vendor_categories"`
	WorkerInterval         string   `yaml:"worker_interval"`
	EmailMaxAttempts       int      `yaml:"email_max_attempts"`
	EmailConcurrency       int      `yaml:"email_concurrency"`
}

// DefaultVendorCategories is used when the config file does not list any.
var DefaultVendorCategories = []string{
	"consulting",
	"design",
	"digital-ads",
	"fundraising",
	"legal-compliance",
	"mail",
	"polling",
	"printing",
	"field",
	"video",
}

// ParseFlags reads configuration from CLI args, then the environment, then
// the optional YAML config file, falling back to defaults.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var configPath, adminEmails string

	fs := flag.NewFlagSet("ballotline", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (postgres or sqlite)")
	fs.StringVar(&configPath, "c", "", "YAML config file")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Public base URL")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.LinkSigningSalt, "link-salt", "", "Link signing salt (prefer env)")
	fs.StringVar(&cfg.AuthJWTSecret, "jwt-secret", "", "Auth provider JWT secret (prefer env)")
	fs.StringVar(&adminEmails, "admin-emails", "", "Comma separated admin emails")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	var file fileConfig
	if configPath != "" {
		var err error
		file, err = loadFile(configPath)
		if err != nil {
			return Config{}, err
		}
	}

	// Fall back to environment variables, then the file
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else if file.Port != 0 {
			cfg.Port = file.Port
		} else {
			cfg.Port = 3318 // default
		}
	}

	cfg.DatabaseURL = firstNonEmpty(cfg.DatabaseURL, os.Getenv("DATABASE_URL"), file.DatabaseURL)
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	cfg.DatabaseType = firstNonEmpty(cfg.DatabaseType, os.Getenv("DATABASE_TYPE"), file.DatabaseType, "postgres")
	cfg.BaseURL = strings.TrimRight(firstNonEmpty(cfg.BaseURL, os.Getenv("BASE_URL"), file.BaseURL, "http://localhost:3318"), "/")

	// Secrets - MUST be provided
	cfg.LinkSigningSalt = firstNonEmpty(cfg.LinkSigningSalt, os.Getenv("LINK_SIGNING_SALT"))
	if cfg.LinkSigningSalt == "" {
		return Config{}, errors.New("LINK_SIGNING_SALT required")
	}
	cfg.AuthJWTSecret = firstNonEmpty(cfg.AuthJWTSecret, os.Getenv("AUTH_JWT_SECRET"))
	if cfg.AuthJWTSecret == "" {
		return Config{}, errors.New("AUTH_JWT_SECRET required")
	}
	cfg.AuthIssuer = firstNonEmpty(os.Getenv("AUTH_ISSUER"), file.AuthIssuer)
	cfg.AuthAudience = firstNonEmpty(os.Getenv("AUTH_AUDIENCE"), file.AuthAudience)

	adminEmails = firstNonEmpty(adminEmails, os.Getenv("ADMIN_EMAILS"))
	if adminEmails != "" {
		cfg.AdminEmails = splitList(adminEmails)
	} else {
		cfg.AdminEmails = normalizeList(file.AdminEmails)
	}

	cfg.EmailProvider = firstNonEmpty(os.Getenv("EMAIL_PROVIDER"), file.EmailProvider, "log")
	cfg.EmailAPIKey = os.Getenv("EMAIL_API_KEY")
	cfg.EmailFrom = firstNonEmpty(os.Getenv("EMAIL_FROM"), file.EmailFrom, "Ballotline <no-reply@ballotline.local>")
	if cfg.EmailProvider != "log" && cfg.EmailAPIKey == "" {
		return Config{}, fmt.Errorf("EMAIL_API_KEY required for email provider %q", cfg.EmailProvider)
	}

	cfg.PaymentsProvider = firstNonEmpty(os.Getenv("PAYMENTS_PROVIDER"), file.PaymentsProvider, "local")
	cfg.PaymentsAPIKey = os.Getenv("PAYMENTS_API_KEY")
	cfg.PaymentsWebhookSecret = os.Getenv("PAYMENTS_WEBHOOK_SECRET")
	if cfg.PaymentsProvider != "local" && (cfg.PaymentsAPIKey == "" || cfg.PaymentsWebhookSecret == "") {
		return Config{}, fmt.Errorf("PAYMENTS_API_KEY and PAYMENTS_WEBHOOK_SECRET required for payments provider %q", cfg.PaymentsProvider)
	}

	cfg.RedisURL = firstNonEmpty(os.Getenv("REDIS_URL"), file.RedisURL)

	var err error
	if cfg.RateLimitRPS, err = intSetting("RATE_LIMIT_RPS", file.RateLimitRPS, 5); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = intSetting("RATE_LIMIT_BURST", file.RateLimitBurst, 10); err != nil {
		return Config{}, err
	}
	if cfg.EmailMaxAttempts, err = intSetting("EMAIL_MAX_ATTEMPTS", file.EmailMaxAttempts, 5); err != nil {
		return Config{}, err
	}
	if cfg.EmailConcurrency, err = intSetting("EMAIL_CONCURRENCY", file.EmailConcurrency, 4); err != nil {
		return Config{}, err
	}

	limit, err := intSetting("CONTRIBUTION_LIMIT_CENTS", int(file.ContributionLimitCents), 330000)
	if err != nil {
		return Config{}, err
	}
	cfg.ContributionLimitCents = int64(limit)
	minDonation, err := intSetting("MIN_DONATION_CENTS", int(file.MinDonationCents), 100)
	if err != nil {
		return Config{}, err
	}
	cfg.MinDonationCents = int64(minDonation)
	if cfg.MinDonationCents <= 0 || cfg.MinDonationCents > cfg.ContributionLimitCents {
		return Config{}, errors.New("MIN_DONATION_CENTS must be positive and below CONTRIBUTION_LIMIT_CENTS")
	}

	interval := firstNonEmpty(os.Getenv("WORKER_INTERVAL"), file.WorkerInterval, "10s")
	cfg.WorkerInterval, err = time.ParseDuration(interval)
	if err != nil || cfg.WorkerInterval <= 0 {
		return Config{}, fmt.Errorf("invalid WORKER_INTERVAL %q", interval)
	}

	cfg.VendorCategories = normalizeList(file.VendorCategories)
	if len(cfg.VendorCategories) == 0 {
		cfg.VendorCategories = DefaultVendorCategories
	}

	return cfg, nil
}

// IsAdminEmail reports whether email is listed in AdminEmails.
func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

// IsVendorCategory reports whether category is one of the marketplace categories.
func (c Config) IsVendorCategory(category string) bool {
	for _, v := range c.VendorCategories {
		if v == category {
			return true
		}
	}
	return false
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("failed to parse config file: %w", err)
	}
	return file, nil
}

func intSetting(env string, fromFile, def int) (int, error) {
	if s := os.Getenv(env); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid %s env variable", env)
		}
		return v, nil
	}
	if fromFile > 0 {
		return fromFile, nil
	}
	return def, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	return normalizeList(strings.Split(s, ","))
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
