package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIConfigDefaults(t *testing.T) {
	cfg, err := LoadAPIConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, 15*time.Minute, cfg.DefaultTokenTTL())
	assert.Equal(t, "bcrypt", cfg.PasswordScheme)
}

func TestLoadAPIConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", " SQLite ")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "5")
	t.Setenv("RATE_LIMIT_REDIS_DB", "3")

	cfg, err := LoadAPIConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, 3, cfg.RateLimitRedisDB)
}

func TestHasherConfigFromEnv(t *testing.T) {
	t.Setenv("PASSWORD_SCHEME", "argon2id")
	t.Setenv("ARGON2_MEMORY_KIB", "16384")
	t.Setenv("ARGON2_ITERATIONS", "2")
	t.Setenv("ARGON2_PARALLELISM", "4")

	cfg, err := LoadAPIConfig()
	require.NoError(t, err)

	hc := cfg.HasherConfig()
	assert.Equal(t, "argon2id", hc.Scheme)
	assert.Equal(t, uint32(16384), hc.Argon2.Memory)
	assert.Equal(t, uint32(2), hc.Argon2.Iterations)
	assert.Equal(t, uint8(4), hc.Argon2.Parallelism)
	assert.Equal(t, 10, hc.BcryptCost)
}

func TestLoadAPIConfigRejectsInvalid(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("DATABASE_DRIVER", "mysql")
		_, err := LoadAPIConfig()
		assert.Error(t, err)
	})
	t.Run("default secret in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, err := LoadAPIConfig()
		assert.Error(t, err)
	})
	t.Run("ttl", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_TTL_MIN", "0")
		_, err := LoadAPIConfig()
		assert.Error(t, err)
	})
	t.Run("malformed int", func(t *testing.T) {
		t.Setenv("BCRYPT_COST", "high")
		_, err := LoadAPIConfig()
		assert.Error(t, err)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPENSES_DOTENV_PROBE=from-file\nEXPENSES_DOTENV_KEEP=from-file\n"), 0o600))

	t.Setenv("EXPENSES_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("EXPENSES_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("EXPENSES_DOTENV_PROBE"))
	assert.Equal(t, "from-env", os.Getenv("EXPENSES_DOTENV_KEEP"))
}
