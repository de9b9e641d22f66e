// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import "time"

// Policy decides whether a request is admitted against the identity's plan
// and cooldown window. The zero value applies no cooldown.
type Policy struct {
	// Cooldown is the minimum spacing between admitted requests from the
	// same identity
	Cooldown time.Duration
}

// Check evaluates the quota checks in order; the first failing check wins.
//
//  1. message count at or above the daily limit
//  2. cumulative cost at or above the daily cost limit
//  3. cooldown window since the last admitted message
//
// Boundary semantics: exactly-at-limit rejects, one-below admits. A request
// at exactly lastMessageAt+Cooldown is admitted.
func (p Policy) Check(record *UsageRecord, plan Plan, now time.Time) Decision {
	if record.MessageCount >= plan.DailyMessageLimit {
		return messageLimitDecision(plan)
	}

	if record.CumulativeCostUSD >= plan.DailyCostLimitUSD {
		return costLimitDecision(plan)
	}

	if p.Cooldown > 0 && record.LastMessageAt != nil {
		elapsed := now.Sub(*record.LastMessageAt)
		if elapsed < p.Cooldown {
			return cooldownDecision(p.Cooldown - elapsed)
		}
	}

	return Decision{Allowed: true}
}
