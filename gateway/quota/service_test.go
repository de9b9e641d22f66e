// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestServiceAdmitFreshIdentity(t *testing.T) {
	svc := NewService(NewMemoryLedger(), Policy{Cooldown: 5 * time.Second})
	ctx := context.Background()
	now := time.Now().UTC()

	adm, err := svc.Admit(ctx, "user-1", testPlan, now)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if adm.Record().MessageCount != 0 {
		t.Errorf("expected fresh record, got count %d", adm.Record().MessageCount)
	}

	if err := adm.Commit(ctx, 120, 0.0005, now); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	rec, _ := svc.Ledger().Get(ctx, "user-1")
	if rec.MessageCount != 1 {
		t.Errorf("expected message count 1 after commit, got %d", rec.MessageCount)
	}
	if rec.TokenCount != 120 {
		t.Errorf("expected token count 120 after commit, got %d", rec.TokenCount)
	}
}

func TestServiceAdmitRejectsAtLimit(t *testing.T) {
	ledger := NewMemoryLedger()
	svc := NewService(ledger, Policy{})
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < testPlan.DailyMessageLimit; i++ {
		_ = ledger.Apply(ctx, "user-1", UsageDelta{Messages: 1})
	}

	_, err := svc.Admit(ctx, "user-1", testPlan, now)
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if qe.Decision.Reason != ReasonMessageLimit {
		t.Errorf("expected message limit reason, got %s", qe.Decision.Reason)
	}
}

func TestServiceReleaseDoesNotBill(t *testing.T) {
	svc := NewService(NewMemoryLedger(), Policy{})
	ctx := context.Background()
	now := time.Now().UTC()

	adm, err := svc.Admit(ctx, "user-1", testPlan, now)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	adm.Release()

	rec, _ := svc.Ledger().Get(ctx, "user-1")
	if rec.MessageCount != 0 {
		t.Errorf("failed job must not bill: got count %d", rec.MessageCount)
	}

	// Identity lock must be free again
	adm2, err := svc.Admit(ctx, "user-1", testPlan, now)
	if err != nil {
		t.Fatalf("second Admit after Release failed: %v", err)
	}
	adm2.Release()
}

func TestServicePostHocCostCheck(t *testing.T) {
	svc := NewService(NewMemoryLedger(), Policy{})
	ctx := context.Background()
	now := time.Now().UTC()

	adm, err := svc.Admit(ctx, "user-1", testPlan, now)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	// Job cost alone reaches the daily cost limit: usage is recorded, but
	// the caller gets a cost-limit rejection (the upstream call was billed).
	err = adm.Commit(ctx, 5000, testPlan.DailyCostLimitUSD, now)
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaError from post-hoc check, got %v", err)
	}
	if qe.Decision.Reason != ReasonCostLimit {
		t.Errorf("expected cost limit reason, got %s", qe.Decision.Reason)
	}

	rec, _ := svc.Ledger().Get(ctx, "user-1")
	if rec.MessageCount != 1 {
		t.Errorf("post-hoc rejection must still record usage, got count %d", rec.MessageCount)
	}
}

func TestServicePostHocCheckDisabled(t *testing.T) {
	svc := NewService(NewMemoryLedger(), Policy{})
	svc.SetStrictPostCostCheck(false)
	ctx := context.Background()
	now := time.Now().UTC()

	adm, _ := svc.Admit(ctx, "user-1", testPlan, now)
	if err := adm.Commit(ctx, 5000, testPlan.DailyCostLimitUSD, now); err != nil {
		t.Errorf("expected no post-hoc rejection when disabled, got %v", err)
	}
}

func TestServiceSerializesSameIdentity(t *testing.T) {
	svc := NewService(NewMemoryLedger(), Policy{})
	ctx := context.Background()

	// Every admitted goroutine commits one message. The per-identity lock
	// serializes get → check → apply, so all N land in the ledger and the
	// limit is never overshot by racing admits.
	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			now := time.Now().UTC()
			adm, err := svc.Admit(ctx, "user-1", testPlan, now)
			if err != nil {
				return
			}
			_ = adm.Commit(ctx, 10, 0.0001, now)
		}()
	}
	wg.Wait()

	rec, _ := svc.Ledger().Get(ctx, "user-1")
	if rec.MessageCount != n {
		t.Errorf("expected %d committed messages, got %d", n, rec.MessageCount)
	}
}

func TestServiceAdmitValidation(t *testing.T) {
	svc := NewService(NewMemoryLedger(), Policy{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Admit(ctx, "", testPlan, now); err != ErrInvalidIdentity {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
	if _, err := svc.Admit(ctx, "user-1", Plan{}, now); err == nil {
		t.Error("expected error for invalid plan")
	}
}

func TestServiceCooldownBetweenCommits(t *testing.T) {
	svc := NewService(NewMemoryLedger(), Policy{Cooldown: 5 * time.Second})
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	adm, err := svc.Admit(ctx, "user-1", testPlan, base)
	if err != nil {
		t.Fatalf("first Admit failed: %v", err)
	}
	if err := adm.Commit(ctx, 10, 0.0001, base); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// One second later: still cooling down
	_, err = svc.Admit(ctx, "user-1", testPlan, base.Add(time.Second))
	var qe *QuotaError
	if !errors.As(err, &qe) || qe.Decision.Reason != ReasonCooldown {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}

	// At the window boundary: admitted
	adm2, err := svc.Admit(ctx, "user-1", testPlan, base.Add(5*time.Second))
	if err != nil {
		t.Fatalf("expected admit at cooldown boundary, got %v", err)
	}
	adm2.Release()
}
