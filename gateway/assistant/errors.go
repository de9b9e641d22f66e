// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrJobFailed is returned when the remote run ends failed, cancelled
	// or expired. The request is answered with an error, never retried.
	ErrJobFailed = errors.New("assistant job failed")

	// ErrJobTimeout is returned when the poll attempt budget is exhausted.
	// The local wait is abandoned; the remote job may keep running with no
	// further accounting.
	ErrJobTimeout = errors.New("assistant job timed out")

	// ErrEmptyResponse is returned when a completed run has no assistant
	// message to extract
	ErrEmptyResponse = errors.New("assistant returned no response")
)

// APIError is a non-2xx response from the assistant service
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("assistant API error (HTTP %d, %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("assistant API error (HTTP %d): %s", e.StatusCode, e.Message)
}
