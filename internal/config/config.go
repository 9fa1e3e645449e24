package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"racket/internal/coin"
	"racket/internal/game"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver      string `env:"RACKET_STORAGE" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"RACKET_SQLITE_PATH" envDefault:"racket.db"`
	MaxConns    int32  `env:"RACKET_DB_MAX_CONNS"`

	// AppName is reported to Postgres as application_name.
	AppName string
}

// RulesConfig overrides individual game.Rules values. Amounts are coin strings like "0.05".
type RulesConfig struct {
	EntitlementPrice coin.Amount   `env:"RACKET_ENTITLEMENT_PRICE"`
	EntryFee         coin.Amount   `env:"RACKET_ENTRY_FEE"`
	PremiumSlotCosts []coin.Amount `env:"RACKET_PREMIUM_SLOT_COSTS" envSeparator:","`
}

type APIConfig struct {
	Addr            string `env:"RACKET_API_ADDR" envDefault:":8080"`
	Port            string `env:"PORT"`
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	Storage         StorageConfig
	Rules           RulesConfig
}

type WorkerConfig struct {
	AuditEvery          time.Duration `env:"RACKET_AUDIT_EVERY" envDefault:"15m"`
	RunOnce             bool          `env:"RACKET_WORKER_RUN_ONCE"`
	DiscordWebhookID    string        `env:"RACKET_DISCORD_WEBHOOK_ID"`
	DiscordWebhookToken string        `env:"RACKET_DISCORD_WEBHOOK_TOKEN"`
	Storage             StorageConfig
	Rules               RulesConfig
}

type CLIConfig struct {
	APIBaseURL string `env:"RKT_API_BASE_URL" envDefault:"http://localhost:8080"`
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.Storage.AppName = "racket-api"
	if port := strings.TrimSpace(cfg.Port); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")
	cfg.SupabaseAnonKey = strings.TrimSpace(cfg.SupabaseAnonKey)
	if err := cfg.Storage.validate(); err != nil {
		return cfg, err
	}
	if cfg.SupabaseURL == "" {
		return cfg, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return cfg, fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.Storage.AppName = "racket-worker"
	if cfg.AuditEvery <= 0 {
		return cfg, fmt.Errorf("RACKET_AUDIT_EVERY must be positive")
	}
	if err := cfg.Storage.validate(); err != nil {
		return cfg, err
	}
	if cfg.Storage.Driver == DriverMemory {
		return cfg, fmt.Errorf("worker needs a shared storage driver, got %q", DriverMemory)
	}
	if (cfg.DiscordWebhookID == "") != (cfg.DiscordWebhookToken == "") {
		return cfg, fmt.Errorf("RACKET_DISCORD_WEBHOOK_ID and RACKET_DISCORD_WEBHOOK_TOKEN must be set together")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := parse(&cfg); err != nil {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg
}

func (s *StorageConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	s.DatabaseURL = strings.TrimSpace(s.DatabaseURL)
	if s.MaxConns < 0 {
		return fmt.Errorf("RACKET_DB_MAX_CONNS must not be negative")
	}
	switch s.Driver {
	case DriverPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case DriverSQLite:
		if strings.TrimSpace(s.SQLitePath) == "" {
			return fmt.Errorf("RACKET_SQLITE_PATH is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown RACKET_STORAGE %q", s.Driver)
	}
	return nil
}

// Apply returns base with the configured overrides, validated.
func (r RulesConfig) Apply(base game.Rules) (game.Rules, error) {
	if r.EntitlementPrice > 0 {
		base.EntitlementPrice = r.EntitlementPrice.Units()
	}
	if r.EntryFee > 0 {
		base.EntryFee = r.EntryFee.Units()
	}
	if len(r.PremiumSlotCosts) > 0 {
		if len(r.PremiumSlotCosts) != len(base.PremiumSlotCosts) {
			return base, fmt.Errorf("RACKET_PREMIUM_SLOT_COSTS needs %d values, got %d", len(base.PremiumSlotCosts), len(r.PremiumSlotCosts))
		}
		for i, cost := range r.PremiumSlotCosts {
			base.PremiumSlotCosts[i] = cost.Units()
		}
	}
	if err := base.Validate(); err != nil {
		return base, fmt.Errorf("rules: %w", err)
	}
	return base, nil
}

// parse reads an optional .env file, then the process environment.
func parse(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
