// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger backed by a map. State is lost on
// restart, which is acceptable for a single-process deployment.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*UsageRecord

	// Now is the clock source, overridable in tests
	Now func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]*UsageRecord),
		Now:     time.Now,
	}
}

// Get returns the identity's current-day record, creating a zeroed one when
// absent or stale
func (l *MemoryLedger) Get(ctx context.Context, identity string) (*UsageRecord, error) {
	if identity == "" {
		return nil, ErrInvalidIdentity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.currentLocked(identity).Clone(), nil
}

// Apply atomically increments the identity's current-day counters
func (l *MemoryLedger) Apply(ctx context.Context, identity string, delta UsageDelta) error {
	if err := validateApply(identity, delta); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.currentLocked(identity)
	rec.MessageCount += delta.Messages
	rec.TokenCount += delta.Tokens
	rec.CumulativeCostUSD += delta.CostUSD
	if !delta.At.IsZero() {
		at := delta.At
		rec.LastMessageAt = &at
	}
	return nil
}

// Reset clears all usage counters
func (l *MemoryLedger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]*UsageRecord)
	return nil
}

// currentLocked returns today's record for the identity, replacing stale or
// missing entries with a zeroed record. Caller must hold l.mu.
func (l *MemoryLedger) currentLocked(identity string) *UsageRecord {
	now := l.Now()
	rec, ok := l.records[identity]
	if !ok || rec.Stale(now) {
		rec = NewUsageRecord(identity, now)
		l.records[identity] = rec
	}
	return rec
}
