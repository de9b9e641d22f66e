// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"context"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := Config{URI: "mongodb://localhost:27017", Database: "nutrichat"}
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collection != DefaultCollection {
		t.Errorf("expected default collection %q, got %q", DefaultCollection, cfg.Collection)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, cfg.Timeout)
	}
}

func TestConfigValidatePreservesOverrides(t *testing.T) {
	cfg := Config{
		URI:        "mongodb://localhost:27017",
		Database:   "nutrichat",
		Collection: "accounts",
		Timeout:    3 * time.Second,
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collection != "accounts" {
		t.Errorf("collection override lost: %q", cfg.Collection)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("timeout override lost: %v", cfg.Timeout)
	}
}

func TestConnectRejectsIncompleteConfig(t *testing.T) {
	ctx := context.Background()

	if _, err := Connect(ctx, Config{Database: "nutrichat"}); err == nil {
		t.Error("expected error for missing URI")
	}
	if _, err := Connect(ctx, Config{URI: "mongodb://localhost:27017"}); err == nil {
		t.Error("expected error for missing database")
	}
}
