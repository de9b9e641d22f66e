// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

// Package quota provides per-identity usage accounting and admission control
// for the chat gateway. It tracks daily message counts, token counts and
// cumulative cost per identity, and decides whether an incoming request is
// admitted against the identity's subscription plan and cooldown window.
//
// Counters are scoped to a UTC calendar day: a stored record whose reset date
// is not today is treated as freshly created. Persistence is pluggable via the
// Ledger interface, with in-memory, SQL (PostgreSQL/MySQL) and Redis backends.
package quota
