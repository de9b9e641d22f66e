// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"nutrichat/backend/gateway/normalize"
	"nutrichat/backend/gateway/quota"
)

// Ledger backend selectors for LEDGER_BACKEND
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
)

// Config holds the gateway's runtime configuration. Secrets come from the
// environment only; the plans file carries tier limits and text formatting
// knobs that operators tune without redeploying.
type Config struct {
	Port string

	// Assistant API
	AssistantAPIKey  string
	AssistantID      string
	AssistantBaseURL string
	PollInterval     time.Duration
	MaxPollAttempts  int

	// Usage ledger
	LedgerBackend string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Profile store
	MongoURI      string
	MongoDatabase string

	// Boundary secrets
	WebhookSecret  string
	AdminJWTSecret string

	// Quota behavior
	Cooldown          time.Duration
	StrictPostCost    bool
	DefaultPlan       string
	Plans             map[string]quota.Plan
	MaxResponseTokens int
	Abbreviations     []string
}

// plansFile is the on-disk YAML shape for tier and formatting settings
type plansFile struct {
	DefaultPlan       string   `yaml:"default_plan"`
	CooldownSeconds   int      `yaml:"cooldown_seconds"`
	MaxResponseTokens int      `yaml:"max_response_tokens"`
	Abbreviations     []string `yaml:"abbreviations"`
	Plans             map[string]struct {
		DailyMessageLimit int     `yaml:"daily_message_limit"`
		DailyCostLimitUSD float64 `yaml:"daily_cost_limit_usd"`
	} `yaml:"plans"`
}

// LoadConfig reads the environment and the optional plans file named by
// PLANS_FILE. Missing settings fall back to workable defaults; the baseline
// plan always exists even with no plans file at all.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		AssistantAPIKey:  os.Getenv("ASSISTANT_API_KEY"),
		AssistantID:      os.Getenv("ASSISTANT_ID"),
		AssistantBaseURL: getEnv("ASSISTANT_BASE_URL", ""),
		PollInterval:     time.Duration(getEnvInt("ASSISTANT_POLL_INTERVAL_SECONDS", 2)) * time.Second,
		MaxPollAttempts:  getEnvInt("ASSISTANT_MAX_POLL_ATTEMPTS", 10),
		LedgerBackend:    getEnv("LEDGER_BACKEND", BackendMemory),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "nutrichat"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		AdminJWTSecret:   os.Getenv("ADMIN_JWT_SECRET"),

		Cooldown:          time.Duration(getEnvInt("COOLDOWN_SECONDS", 5)) * time.Second,
		StrictPostCost:    getEnvBool("STRICT_POST_COST_CHECK", true),
		DefaultPlan:       quota.BaselinePlan.Name,
		Plans:             map[string]quota.Plan{quota.BaselinePlan.Name: quota.BaselinePlan},
		MaxResponseTokens: normalize.DefaultMaxTokens,
		Abbreviations:     nil,
	}

	if path := os.Getenv("PLANS_FILE"); path != "" {
		if err := cfg.loadPlansFile(path); err != nil {
			return nil, err
		}
	}

	switch cfg.LedgerBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendMySQL:
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
	if (cfg.LedgerBackend == BackendPostgres || cfg.LedgerBackend == BackendMySQL) && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("ledger backend %q requires DATABASE_URL", cfg.LedgerBackend)
	}
	if cfg.LedgerBackend == BackendRedis && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("ledger backend redis requires REDIS_ADDR")
	}

	return cfg, nil
}

func (c *Config) loadPlansFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plans file: %w", err)
	}

	var pf plansFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse plans file: %w", err)
	}

	for name, p := range pf.Plans {
		plan := quota.Plan{
			Name:              name,
			DailyMessageLimit: p.DailyMessageLimit,
			DailyCostLimitUSD: p.DailyCostLimitUSD,
		}
		if err := plan.Validate(); err != nil {
			return fmt.Errorf("invalid plan %q: %w", name, err)
		}
		c.Plans[name] = plan
	}
	if pf.DefaultPlan != "" {
		if _, ok := c.Plans[pf.DefaultPlan]; !ok {
			return fmt.Errorf("default plan %q not defined in plans file", pf.DefaultPlan)
		}
		c.DefaultPlan = pf.DefaultPlan
	}
	if pf.CooldownSeconds > 0 {
		c.Cooldown = time.Duration(pf.CooldownSeconds) * time.Second
	}
	if pf.MaxResponseTokens > 0 {
		c.MaxResponseTokens = pf.MaxResponseTokens
	}
	if len(pf.Abbreviations) > 0 {
		c.Abbreviations = pf.Abbreviations
	}
	return nil
}

// Plan resolves a plan by name, falling back to the default tier for
// unknown or empty names.
func (c *Config) Plan(name string) quota.Plan {
	if p, ok := c.Plans[name]; ok {
		return p
	}
	return c.Plans[c.DefaultPlan]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
