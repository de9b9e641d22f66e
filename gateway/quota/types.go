// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"fmt"
	"time"
)

// DateFormat is the layout for reset dates (UTC calendar day)
const DateFormat = "2006-01-02"

// UsageRecord holds the daily counters for a single identity
type UsageRecord struct {
	Identity          string     `json:"identity"`
	MessageCount      int        `json:"message_count"`
	TokenCount        int        `json:"token_count"`
	CumulativeCostUSD float64    `json:"cumulative_cost_usd"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
	ResetDate         string     `json:"reset_date"`
}

// NewUsageRecord creates a zeroed record stamped with today's date
func NewUsageRecord(identity string, now time.Time) *UsageRecord {
	return &UsageRecord{
		Identity:  identity,
		ResetDate: Today(now),
	}
}

// Stale reports whether the record's counters belong to a previous day.
// Stale records must be treated as zeroed before use.
func (r *UsageRecord) Stale(now time.Time) bool {
	return r.ResetDate != Today(now)
}

// Clone returns a copy safe to hand to callers
func (r *UsageRecord) Clone() *UsageRecord {
	out := *r
	if r.LastMessageAt != nil {
		t := *r.LastMessageAt
		out.LastMessageAt = &t
	}
	return &out
}

// Today formats a timestamp as a UTC calendar date
func Today(now time.Time) string {
	return now.UTC().Format(DateFormat)
}

// UsageDelta is the set of increments applied after a completed job
type UsageDelta struct {
	Messages int
	Tokens   int
	CostUSD  float64
	At       time.Time
}

// Plan is a subscription tier with daily limits
type Plan struct {
	Name              string  `json:"name" yaml:"name"`
	DailyMessageLimit int     `json:"daily_message_limit" yaml:"daily_message_limit"`
	DailyCostLimitUSD float64 `json:"daily_cost_limit_usd" yaml:"daily_cost_limit_usd"`
}

// BaselinePlan is used when no plan can be resolved for an identity
var BaselinePlan = Plan{
	Name:              "basic",
	DailyMessageLimit: 20,
	DailyCostLimitUSD: 0.01,
}

// Validate validates the plan configuration
func (p Plan) Validate() error {
	if p.Name == "" {
		return ErrInvalidPlanName
	}
	if p.DailyMessageLimit <= 0 {
		return ErrInvalidMessageLimit
	}
	if p.DailyCostLimitUSD <= 0 {
		return ErrInvalidCostLimit
	}
	return nil
}

// RejectReason identifies why a request was not admitted
type RejectReason string

const (
	ReasonMessageLimit RejectReason = "message_limit_exceeded"
	ReasonCostLimit    RejectReason = "cost_limit_exceeded"
	ReasonCooldown     RejectReason = "cooldown"
)

// Decision is the outcome of a quota check. Message carries the user-facing
// Portuguese rejection text returned on 429 responses.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Reason     RejectReason  `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"-"`
	Message    string        `json:"message,omitempty"`
}

func messageLimitDecision(plan Plan) Decision {
	return Decision{
		Reason: ReasonMessageLimit,
		Message: fmt.Sprintf(
			"⚠️ Limite diário de %d mensagens atingido. Tente novamente amanhã.",
			plan.DailyMessageLimit),
	}
}

func costLimitDecision(plan Plan) Decision {
	return Decision{
		Reason:  ReasonCostLimit,
		Message: "⚠️ Limite diário de custo atingido. Tente novamente amanhã.",
	}
}

func cooldownDecision(remaining time.Duration) Decision {
	secs := int((remaining + time.Second - 1) / time.Second)
	return Decision{
		Reason:     ReasonCooldown,
		RetryAfter: remaining,
		Message: fmt.Sprintf(
			"⏳ Aguarde %d segundos antes de enviar outra mensagem.", secs),
	}
}
