// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger provides structured logging scoped to a gateway component
type Logger struct {
	Component string
	Container string
	out       io.Writer
}

// LogEntry is a single structured log line. Identity carries the quota
// identity (user id or caller address) so per-user traffic can be filtered
// in log aggregation.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Component string                 `json:"component"`
	Container string                 `json:"container"`
	Identity  string                 `json:"identity,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component
func New(component string) *Logger {
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component: component,
		Container: container,
		out:       os.Stdout,
	}
}

// NewWithWriter creates a Logger writing to the given writer (used in tests)
func NewWithWriter(component string, out io.Writer) *Logger {
	l := New(component)
	l.out = out
	return l
}

// Log creates a structured log entry and writes it as single-line JSON
func (l *Logger) Log(level LogLevel, identity, requestID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: l.Component,
		Container: l.Container,
		Identity:  identity,
		RequestID: requestID,
		Message:   message,
		Fields:    fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: failed to marshal log entry: %v", err)
		return
	}

	jsonBytes = append(jsonBytes, '\n')
	_, _ = l.out.Write(jsonBytes)
}

// Info logs an informational message
func (l *Logger) Info(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, identity, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, identity, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, identity, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(identity, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, identity, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field
func (l *Logger) InfoWithDuration(identity, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(identity, requestID, message, fields)
}

// ErrorWithCode logs an error with the HTTP status returned to the caller
func (l *Logger) ErrorWithCode(identity, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(identity, requestID, message, fields)
}
