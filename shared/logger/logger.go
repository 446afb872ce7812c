// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package logger provides structured JSON logging with per-project context.
// Every entry carries the emitting component and, where known, the project
// and request the entry belongs to, so multi-tenant log streams can be
// filtered per tenant.
package logger

import (
	"encoding/json"
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

// Logger emits structured log entries for one component.
type Logger struct {
	Component  string
	InstanceID string
	Container  string
}

// LogEntry is the JSON shape written to stdout.
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	ProjectID  string                 `json:"project_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a Logger for the specified component.
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
	}
}

// Log creates a structured log entry and writes it to stdout.
func (l *Logger) Log(level LogLevel, projectID, requestID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		ProjectID:  projectID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

// Info logs an informational message.
func (l *Logger) Info(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, projectID, requestID, message, fields)
}

// Error logs an error message.
func (l *Logger) Error(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, projectID, requestID, message, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, projectID, requestID, message, fields)
}

// Debug logs a debug message.
func (l *Logger) Debug(projectID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, projectID, requestID, message, fields)
}

// ErrorWithCode logs an error together with the HTTP status code that was
// returned to the caller.
func (l *Logger) ErrorWithCode(projectID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(projectID, requestID, message, fields)
}
