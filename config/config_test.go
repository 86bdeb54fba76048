package config

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_EMAIL_DOMAINS", "@School.edu, org.ph")
	t.Setenv("PRESIDENT_EMAIL", " President@School.edu ")
	t.Setenv("JWT_EXPIRY", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, []string{"school.edu", "org.ph"}, cfg.Auth.AllowedEmailDomains)
	assert.Equal(t, "president@school.edu", cfg.Auth.PresidentEmail)
	assert.Equal(t, "noop", cfg.Email.Provider)
	assert.Equal(t, int64(5242880), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoad_missingSecret(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, true, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])
}
