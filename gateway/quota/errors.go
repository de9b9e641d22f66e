// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

import "errors"

var (
	// ErrInvalidIdentity is returned for an empty identity key
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrInvalidPlanName is returned for a plan without a name
	ErrInvalidPlanName = errors.New("invalid plan name")

	// ErrInvalidMessageLimit is returned when the daily message limit is not positive
	ErrInvalidMessageLimit = errors.New("daily message limit must be greater than 0")

	// ErrInvalidCostLimit is returned when the daily cost limit is not positive
	ErrInvalidCostLimit = errors.New("daily cost limit must be greater than 0")

	// ErrInvalidDelta is returned for a usage delta with negative counters
	ErrInvalidDelta = errors.New("usage delta counters must be non-negative")

	// ErrLedgerClosed is returned when operating on a closed ledger
	ErrLedgerClosed = errors.New("ledger is closed")
)

// QuotaError is returned by the admission service when a request is rejected.
// It carries the full decision so the transport layer can pick status code,
// Retry-After and the user-facing message.
type QuotaError struct {
	Decision Decision
}

func (e *QuotaError) Error() string {
	return e.Decision.Message
}
