// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/cors"

	"nutrichat/backend/gateway/assistant"
	"nutrichat/backend/gateway/normalize"
	"nutrichat/backend/gateway/profile"
	"nutrichat/backend/gateway/quota"
	"nutrichat/backend/shared/logger"
)

// Run is the exported entry point for the gateway service.
//
// It loads configuration, connects the usage ledger and profile store,
// builds the assistant client, registers HTTP routes, and starts the
// server. The function blocks until the server is shut down.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8080)
//   - ASSISTANT_API_KEY / ASSISTANT_ID: hosted assistant credentials
//   - LEDGER_BACKEND: memory | postgres | mysql | redis (default: memory)
//   - DATABASE_URL: SQL connection string (postgres/mysql backends)
//   - REDIS_ADDR / REDIS_PASSWORD / REDIS_DB: redis backend
//   - MONGO_URI / MONGO_DATABASE: profile store (optional)
//   - WEBHOOK_SECRET: payment webhook signature key
//   - ADMIN_JWT_SECRET: admin endpoint token key
//   - PLANS_FILE: YAML file with plan tiers and formatting settings
func Run() {
	log.Println("Starting NutriChat Gateway...")

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg := logger.New("gateway")
	ctx := context.Background()

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open usage ledger: %v", err)
	}
	log.Printf("Usage ledger: %s", cfg.LedgerBackend)

	svc := quota.NewService(ledger, quota.Policy{Cooldown: cfg.Cooldown})
	svc.SetStrictPostCostCheck(cfg.StrictPostCost)

	client, err := assistant.NewClient(assistant.Config{
		APIKey:      cfg.AssistantAPIKey,
		AssistantID: cfg.AssistantID,
		BaseURL:     cfg.AssistantBaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to build assistant client: %v", err)
	}
	orch := assistant.NewOrchestrator(client, assistant.Options{
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxPollAttempts,
	})

	var profiles ProfileStore
	if cfg.MongoURI != "" {
		store, err := profile.Connect(ctx, profile.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			log.Fatalf("Failed to connect profile store: %v", err)
		}
		defer store.Close(ctx)
		profiles = store
		log.Println("Profile store connected")
	} else {
		log.Println("No profile store configured, all users on default tier")
	}

	norm := normalize.New(normalize.Config{
		MaxTokens:     cfg.MaxResponseTokens,
		Abbreviations: cfg.Abbreviations,
	})

	server := NewServer(cfg, lg, svc, orch, norm, profiles)

	r := mux.NewRouter()
	server.RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(r)

	log.Printf("NutriChat Gateway listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}

// openLedger builds the usage ledger named by LEDGER_BACKEND
func openLedger(ctx context.Context, cfg *Config) (quota.Ledger, error) {
	switch cfg.LedgerBackend {
	case BackendMemory:
		return quota.NewMemoryLedger(), nil

	case BackendPostgres, BackendMySQL:
		db, err := sql.Open(cfg.LedgerBackend, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		ledger := quota.NewSQLLedger(db, cfg.LedgerBackend)
		if err := ledger.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
		}
		return ledger, nil

	case BackendRedis:
		return quota.NewRedisLedger(ctx, quota.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
