// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/agentcost_test")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/agentcost_test", cfg.Database.URL)
	assert.Equal(t, "reject", cfg.Pricing.UnknownModelPolicy)
	assert.Equal(t, 366, cfg.Analytics.MaxWindowDays)
	assert.Equal(t, 600, cfg.Auth.RateLimitPerMinute)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
database:
  url: postgres://file/db
auth:
  jwt_secret: from-file
pricing:
  unknown_model_policy: allow
analytics:
  max_window_days: 90
`), 0o600))

	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL, "environment beats the file")
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "allow", cfg.Pricing.UnknownModelPolicy)
	assert.Equal(t, 90, cfg.Analytics.MaxWindowDays)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "s")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
}

func TestLoadRequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PRICING_UNKNOWN_MODEL_POLICY", "maybe")

	_, err := Load("")
	require.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PORT", "8888")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8888", cfg.Server.Addr)
}
