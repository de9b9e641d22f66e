// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import "context"

// Ledger defines the interface for usage counter persistence.
//
// Implementations must never mix counters across calendar days: Get on a
// record whose stored reset date is not today returns (and persists) a zeroed
// record stamped with today's date. Apply increments are atomic per identity.
type Ledger interface {
	// Get returns the current-day record for the identity, creating a
	// zeroed one when absent or stale.
	Get(ctx context.Context, identity string) (*UsageRecord, error)

	// Apply atomically increments the identity's current-day counters and
	// stamps LastMessageAt from the delta.
	Apply(ctx context.Context, identity string, delta UsageDelta) error

	// Reset clears all usage counters immediately. Used by the admin
	// endpoint and cron-driven daily resets.
	Reset(ctx context.Context) error
}

func validateApply(identity string, delta UsageDelta) error {
	if identity == "" {
		return ErrInvalidIdentity
	}
	if delta.Messages < 0 || delta.Tokens < 0 || delta.CostUSD < 0 {
		return ErrInvalidDelta
	}
	return nil
}
