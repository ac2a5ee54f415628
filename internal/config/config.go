package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=cargo port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:3000"
)

type Config struct {
	Env         string
	HTTPPort    string
	CORSOrigins string

	Database  DatabaseConfig
	JWT       JWTConfig
	Log       LogConfig
	Reconcile ReconcileConfig
}

type DatabaseConfig struct {
	Driver string // postgres or sqlite
	DSN    string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// ReconcileConfig holds the milestone thresholds used by the status reconciler.
type ReconcileConfig struct {
	ShippedAfter   time.Duration // SALIENDO -> LLEGANDO
	DeliveredAfter time.Duration // EN 🇦🇷 -> ENTREGADO
}

// Load reads config.toml (optional) and CARGO_* environment variables.
// Environment wins over the file, the file wins over built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CARGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Env:         v.GetString("app.env"),
		HTTPPort:    v.GetString("http.port"),
		CORSOrigins: v.GetString("http.cors_origins"),
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			TTL:    v.GetDuration("jwt.ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Reconcile: ReconcileConfig{
			ShippedAfter:   v.GetDuration("reconcile.shipped_after"),
			DeliveredAfter: v.GetDuration("reconcile.delivered_after"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = defaultCORSOrigins
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.DSN == "" {
		if cfg.Database.Driver == "sqlite" {
			cfg.Database.DSN = "cargo.db"
		} else {
			cfg.Database.DSN = defaultPostgresDSN
		}
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Reconcile.ShippedAfter == 0 {
		cfg.Reconcile.ShippedAfter = 48 * time.Hour
	}
	if cfg.Reconcile.DeliveredAfter == 0 {
		cfg.Reconcile.DeliveredAfter = 72 * time.Hour
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required (set CARGO_JWT_SECRET)")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt.secret must be at least 32 characters")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}

// IsProduction reports whether the app runs with app.env=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Warnings lists settings still on their development defaults.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Database.Driver == "postgres" && c.Database.DSN == defaultPostgresDSN {
		warnings = append(warnings, "database.dsn is using the default value, set CARGO_DATABASE_DSN for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		warnings = append(warnings, "http.cors_origins is using the default value, set CARGO_HTTP_CORS_ORIGINS for production")
	}
	return warnings
}
