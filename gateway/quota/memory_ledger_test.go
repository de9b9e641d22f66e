// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLedgerGetCreatesZeroedRecord(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	rec, err := l.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.MessageCount != 0 || rec.TokenCount != 0 || rec.CumulativeCostUSD != 0 {
		t.Errorf("expected zeroed counters, got %+v", rec)
	}
	if rec.ResetDate != Today(time.Now()) {
		t.Errorf("expected today's reset date, got %s", rec.ResetDate)
	}
	if rec.LastMessageAt != nil {
		t.Error("expected no last message timestamp on fresh record")
	}
}

func TestMemoryLedgerStaleRecordZeroed(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	l.Now = func() time.Time { return yesterday }

	if err := l.Apply(ctx, "user-1", UsageDelta{Messages: 5, Tokens: 100, CostUSD: 0.005, At: yesterday}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Day boundary crossed: counters must read as zero
	l.Now = time.Now
	rec, err := l.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.MessageCount != 0 {
		t.Errorf("stale record not zeroed: count=%d", rec.MessageCount)
	}
	if rec.ResetDate != Today(time.Now()) {
		t.Errorf("expected reset date stamped today, got %s", rec.ResetDate)
	}
}

func TestMemoryLedgerApplyIncrements(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	if err := l.Apply(ctx, "user-1", UsageDelta{Messages: 1, Tokens: 42, CostUSD: 0.001, At: at}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := l.Apply(ctx, "user-1", UsageDelta{Messages: 1, Tokens: 8, CostUSD: 0.002, At: at.Add(time.Second)}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	rec, _ := l.Get(ctx, "user-1")
	if rec.MessageCount != 2 {
		t.Errorf("expected 2 messages, got %d", rec.MessageCount)
	}
	if rec.TokenCount != 50 {
		t.Errorf("expected 50 tokens, got %d", rec.TokenCount)
	}
	if rec.CumulativeCostUSD < 0.0029 || rec.CumulativeCostUSD > 0.0031 {
		t.Errorf("expected cost ~0.003, got %f", rec.CumulativeCostUSD)
	}
	if rec.LastMessageAt == nil || !rec.LastMessageAt.Equal(at.Add(time.Second)) {
		t.Errorf("expected last message at %s, got %v", at.Add(time.Second), rec.LastMessageAt)
	}
}

func TestMemoryLedgerConcurrentApplyNoLostUpdates(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = l.Apply(ctx, "user-1", UsageDelta{Messages: 1, Tokens: 1, CostUSD: 0.0001, At: time.Now()})
		}()
	}
	wg.Wait()

	rec, _ := l.Get(ctx, "user-1")
	if rec.MessageCount != n {
		t.Errorf("lost updates: expected %d messages, got %d", n, rec.MessageCount)
	}
	if rec.TokenCount != n {
		t.Errorf("lost updates: expected %d tokens, got %d", n, rec.TokenCount)
	}
}

func TestMemoryLedgerReset(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_ = l.Apply(ctx, "user-1", UsageDelta{Messages: 3, At: time.Now()})
	_ = l.Apply(ctx, "user-2", UsageDelta{Messages: 7, At: time.Now()})

	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	for _, id := range []string{"user-1", "user-2"} {
		rec, _ := l.Get(ctx, id)
		if rec.MessageCount != 0 {
			t.Errorf("%s: expected zeroed counters after reset, got %d", id, rec.MessageCount)
		}
	}
}

func TestMemoryLedgerRejectsEmptyIdentity(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	if _, err := l.Get(ctx, ""); err != ErrInvalidIdentity {
		t.Errorf("Get: expected ErrInvalidIdentity, got %v", err)
	}
	if err := l.Apply(ctx, "", UsageDelta{Messages: 1}); err != ErrInvalidIdentity {
		t.Errorf("Apply: expected ErrInvalidIdentity, got %v", err)
	}
}

func TestMemoryLedgerRejectsNegativeDelta(t *testing.T) {
	l := NewMemoryLedger()
	if err := l.Apply(context.Background(), "user-1", UsageDelta{Messages: -1}); err != ErrInvalidDelta {
		t.Errorf("expected ErrInvalidDelta, got %v", err)
	}
}

func TestMemoryLedgerGetReturnsCopy(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	rec, _ := l.Get(ctx, "user-1")
	rec.MessageCount = 99

	fresh, _ := l.Get(ctx, "user-1")
	if fresh.MessageCount != 0 {
		t.Error("mutating a returned record must not affect stored state")
	}
}
