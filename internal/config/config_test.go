package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("CARGO_JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "development", cfg.Env)
		assert.Equal(t, "8080", cfg.HTTPPort)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, defaultPostgresDSN, cfg.Database.DSN)
		assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.Equal(t, 48*time.Hour, cfg.Reconcile.ShippedAfter)
		assert.Equal(t, 72*time.Hour, cfg.Reconcile.DeliveredAfter)
		assert.Len(t, cfg.Warnings(), 2)
	})

	t.Run("reads environment overrides", func(t *testing.T) {
		t.Setenv("CARGO_JWT_SECRET", testSecret)
		t.Setenv("CARGO_APP_ENV", "production")
		t.Setenv("CARGO_HTTP_PORT", "9000")
		t.Setenv("CARGO_DATABASE_DRIVER", "sqlite")
		t.Setenv("CARGO_RECONCILE_SHIPPED_AFTER", "24h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.True(t, cfg.IsProduction())
		assert.Equal(t, "9000", cfg.HTTPPort)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "cargo.db", cfg.Database.DSN)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, 24*time.Hour, cfg.Reconcile.ShippedAfter)
	})

	t.Run("rejects missing secret", func(t *testing.T) {
		t.Setenv("CARGO_JWT_SECRET", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects short secret", func(t *testing.T) {
		t.Setenv("CARGO_JWT_SECRET", "short")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("CARGO_JWT_SECRET", testSecret)
		t.Setenv("CARGO_DATABASE_DRIVER", "oracle")

		_, err := Load()
		assert.Error(t, err)
	})
}
