// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

/*
Command gateway runs the NutriChat Gateway service.

The gateway sits between chat clients and the hosted assistant: it enforces
per-user daily message and cost quotas with a send cooldown, forwards
admitted messages to the assistant, and returns the reply normalized for
plain-text chat clients.

# Usage

	gateway

# Environment Variables

Required:
  - ASSISTANT_API_KEY: hosted assistant API key
  - ASSISTANT_ID: assistant identifier

Optional:
  - PORT: HTTP server port (default: 8080)
  - LEDGER_BACKEND: memory | postgres | mysql | redis (default: memory)
  - DATABASE_URL: SQL connection string (postgres/mysql backends)
  - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: redis backend
  - MONGO_URI, MONGO_DATABASE: user profile store
  - WEBHOOK_SECRET: payment webhook signature key
  - ADMIN_JWT_SECRET: admin endpoint token key
  - PLANS_FILE: YAML file with plan tiers and formatting settings
  - COOLDOWN_SECONDS: seconds between messages per user (default: 5)

# Example

	export ASSISTANT_API_KEY="..."
	export ASSISTANT_ID="asst_..."
	export LEDGER_BACKEND="redis"
	export REDIS_ADDR="localhost:6379"
	./gateway
*/
package main
