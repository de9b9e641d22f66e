// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

// Package assistant submits chat messages to the hosted assistant service and
// waits for the resulting job to complete. Each submission creates a fresh
// remote conversation; the orchestrator is stateless across requests.
package assistant

import "time"

// Status is the lifecycle state of a remote assistant run
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status ends the run
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Message is a single conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage contains token accounting reported by the assistant service
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Job is the outcome of one completed submission. It is discarded after its
// text and token counts are extracted.
type Job struct {
	ID               string
	ThreadID         string
	Status           Status
	Model            string
	RawText          string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// TotalTokens returns total tokens used by the job
func (j *Job) TotalTokens() int {
	return j.PromptTokens + j.CompletionTokens
}
