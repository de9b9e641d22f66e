// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Service combines a Ledger and a Policy into an admission workflow that is
// safe under concurrent requests for the same identity.
//
// The get → check → job → apply sequence is serialized per identity with a
// keyed mutex, closing the check-then-act race where two concurrent requests
// both pass the quota check against a stale record.
type Service struct {
	ledger Ledger
	policy Policy

	// strictPostCost enables the post-hoc cost check on Commit: a job whose
	// cost pushes the identity to or past its daily cost limit is reported
	// as rejected even though the upstream call already ran and was billed.
	// This pay-then-reject asymmetry is intentional and kept configurable.
	strictPostCost bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates an admission service over the given ledger and policy
func NewService(ledger Ledger, policy Policy) *Service {
	return &Service{
		ledger:         ledger,
		policy:         policy,
		strictPostCost: true,
		locks:          make(map[string]*sync.Mutex),
	}
}

// SetStrictPostCostCheck toggles the post-hoc cost check on Commit
func (s *Service) SetStrictPostCostCheck(enabled bool) {
	s.strictPostCost = enabled
}

// Ledger returns the underlying ledger (used by the admin reset endpoint)
func (s *Service) Ledger() Ledger {
	return s.ledger
}

func (s *Service) identityLock(identity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk, ok := s.locks[identity]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[identity] = lk
	}
	return lk
}

// Admission is a held admission for a single request. Exactly one of Commit
// or Release must be called; both release the identity lock.
type Admission struct {
	svc      *Service
	identity string
	plan     Plan
	record   *UsageRecord
	lock     *sync.Mutex
	done     bool
}

// Admit checks the identity's quota and, when admitted, returns an Admission
// holding the per-identity lock. A rejection is returned as *QuotaError.
func (s *Service) Admit(ctx context.Context, identity string, plan Plan, now time.Time) (*Admission, error) {
	if identity == "" {
		return nil, ErrInvalidIdentity
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %q: %w", plan.Name, err)
	}

	lk := s.identityLock(identity)
	lk.Lock()

	record, err := s.ledger.Get(ctx, identity)
	if err != nil {
		lk.Unlock()
		return nil, fmt.Errorf("ledger get: %w", err)
	}

	decision := s.policy.Check(record, plan, now)
	if !decision.Allowed {
		lk.Unlock()
		return nil, &QuotaError{Decision: decision}
	}

	return &Admission{
		svc:      s,
		identity: identity,
		plan:     plan,
		record:   record,
		lock:     lk,
	}, nil
}

// Record returns the usage record the admission was decided against
func (a *Admission) Record() *UsageRecord {
	return a.record
}

// Commit applies the actual usage of a completed job to the ledger. When the
// strict post-hoc cost check is enabled and the new cost reaches the daily
// cost limit, the usage is still recorded (the upstream call was already
// billed) but a *QuotaError with the cost-limit reason is returned so the
// caller answers the request with a rejection.
func (a *Admission) Commit(ctx context.Context, tokens int, costUSD float64, now time.Time) error {
	if a.done {
		return ErrLedgerClosed
	}
	defer a.release()

	delta := UsageDelta{Messages: 1, Tokens: tokens, CostUSD: costUSD, At: now}
	if err := a.svc.ledger.Apply(ctx, a.identity, delta); err != nil {
		return fmt.Errorf("ledger apply: %w", err)
	}

	if a.svc.strictPostCost && a.record.CumulativeCostUSD+costUSD >= a.plan.DailyCostLimitUSD {
		return &QuotaError{Decision: costLimitDecision(a.plan)}
	}
	return nil
}

// Release abandons the admission without mutating any counters. Failed jobs
// are non-billing: a request that was admitted but whose job failed must not
// increment usage.
func (a *Admission) Release() {
	if a.done {
		return
	}
	a.release()
}

func (a *Admission) release() {
	a.done = true
	a.lock.Unlock()
}
