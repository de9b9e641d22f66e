// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrichat/backend/gateway/quota"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.LedgerBackend)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.MaxPollAttempts)
	assert.Equal(t, 5*time.Second, cfg.Cooldown)
	assert.True(t, cfg.StrictPostCost)
	assert.Equal(t, quota.BaselinePlan.Name, cfg.DefaultPlan)
	assert.Equal(t, quota.BaselinePlan, cfg.Plan(""))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COOLDOWN_SECONDS", "12")
	t.Setenv("STRICT_POST_COST_CHECK", "false")
	t.Setenv("ASSISTANT_POLL_INTERVAL_SECONDS", "1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 12*time.Second, cfg.Cooldown)
	assert.False(t, cfg.StrictPostCost)
	assert.Equal(t, time.Second, cfg.PollInterval)
}

func TestLoadConfigRequiresBackendSettings(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", BackendPostgres)
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("LEDGER_BACKEND", BackendRedis)
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("LEDGER_BACKEND", "cassandra")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigPlansFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	content := `
default_plan: premium
cooldown_seconds: 3
max_response_tokens: 150
abbreviations:
  - "dr."
  - "eng."
plans:
  premium:
    daily_message_limit: 200
    daily_cost_limit_usd: 0.50
  basic:
    daily_message_limit: 10
    daily_cost_limit_usd: 0.01
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PLANS_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "premium", cfg.DefaultPlan)
	assert.Equal(t, 3*time.Second, cfg.Cooldown)
	assert.Equal(t, 150, cfg.MaxResponseTokens)
	assert.Equal(t, []string{"dr.", "eng."}, cfg.Abbreviations)

	premium := cfg.Plan("premium")
	assert.Equal(t, 200, premium.DailyMessageLimit)
	assert.Equal(t, 0.50, premium.DailyCostLimitUSD)

	// File definition overrides the built-in baseline
	assert.Equal(t, 10, cfg.Plan("basic").DailyMessageLimit)

	// Unknown names resolve to the default tier
	assert.Equal(t, premium, cfg.Plan("enterprise"))
}

func TestLoadConfigPlansFileRejectsInvalidPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	content := `
plans:
  broken:
    daily_message_limit: -1
    daily_cost_limit_usd: 0.50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PLANS_FILE", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigPlansFileRejectsUnknownDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_plan: missing\n"), 0o600))
	t.Setenv("PLANS_FILE", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}
