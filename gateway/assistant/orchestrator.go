// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package assistant

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultPollInterval is the fixed spacing between run status polls
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxAttempts bounds the poll loop. Unbounded polling against a
	// stuck run would pin the request forever.
	DefaultMaxAttempts = 10
)

// API is the subset of the assistant service the orchestrator needs.
// *Client implements it; tests substitute a scripted fake.
type API interface {
	CreateThread(ctx context.Context, messages []Message) (string, error)
	CreateRun(ctx context.Context, threadID string) (string, error)
	GetRun(ctx context.Context, threadID, runID string) (Status, string, Usage, error)
	LatestAssistantText(ctx context.Context, threadID string) (string, error)
}

// Orchestrator drives one conversation job: create thread, start run, poll
// until terminal, extract the response text and token usage.
type Orchestrator struct {
	api          API
	pollInterval time.Duration
	maxAttempts  int
}

// Options tune the poll loop
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// NewOrchestrator creates an orchestrator over the given API client
func NewOrchestrator(client API, opts Options) *Orchestrator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return &Orchestrator{
		api:          client,
		pollInterval: interval,
		maxAttempts:  attempts,
	}
}

// IsHealthy reports the underlying API client's health when it tracks one
func (o *Orchestrator) IsHealthy() bool {
	if hc, ok := o.api.(interface{ IsHealthy() bool }); ok {
		return hc.IsHealthy()
	}
	return true
}

// Submit runs one conversation job to completion. prior seeds the new thread
// with earlier turns for limited context; every call still creates a fresh
// remote conversation.
//
// Terminal failures (failed, cancelled, expired) surface as ErrJobFailed and
// are never retried here. Exhausting the attempt budget surfaces as
// ErrJobTimeout; the remote run is not cancelled, only the local wait ends.
func (o *Orchestrator) Submit(ctx context.Context, message string, prior []Message) (*Job, error) {
	start := time.Now()

	messages := append(append([]Message{}, prior...), Message{Role: "user", Content: message})
	threadID, err := o.api.CreateThread(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	runID, err := o.api.CreateRun(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		status, model, usage, err := o.api.GetRun(ctx, threadID, runID)
		if err != nil {
			return nil, fmt.Errorf("poll run: %w", err)
		}

		switch status {
		case StatusCompleted:
			text, err := o.api.LatestAssistantText(ctx, threadID)
			if err != nil {
				return nil, fmt.Errorf("read response: %w", err)
			}
			return &Job{
				ID:               runID,
				ThreadID:         threadID,
				Status:           StatusCompleted,
				Model:            model,
				RawText:          text,
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				Latency:          time.Since(start),
			}, nil

		case StatusFailed, StatusCancelled, StatusExpired:
			return nil, fmt.Errorf("%w: run %s ended %s", ErrJobFailed, runID, status)
		}

		// queued or in_progress: wait out the interval, abort on cancellation
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}

	return nil, fmt.Errorf("%w: run %s still pending after %d polls", ErrJobTimeout, runID, o.maxAttempts)
}
