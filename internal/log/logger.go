// Package log provides structured event logging.
// This file appends JSON events to log.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventServerStarted      = "server_started"
	EventHTTPRequest        = "http_request"
	EventProjectCreated     = "project_created"
	EventAnswerRecorded     = "answer_recorded"
	EventQuestionsGenerated = "questions_generated"
	EventChapterGenerated   = "chapter_generated"
	EventModuleApproved     = "module_approved"
	EventModuleUnapproved   = "module_unapproved"
	EventNarrativeCompiled  = "narrative_compiled"
	EventBookExported       = "book_exported"
	EventJobQueued          = "job_queued"
	EventJobStarted         = "job_started"
	EventJobCompleted       = "job_completed"
	EventJobFailed          = "job_failed"
	EventWarning            = "warning"
)

// LogEvent represents a single structured event written to the log.
type LogEvent struct {
	Time         time.Time              `json:"time"`
	Event        string                 `json:"event"`
	UserID       string                 `json:"user,omitempty"`
	ProjectID    string                 `json:"project,omitempty"`
	ModuleID     string                 `json:"module,omitempty"`
	ModuleNumber int                    `json:"module_number,omitempty"`
	JobID        string                 `json:"job,omitempty"`
	JobType      string                 `json:"job_type,omitempty"`
	Method       string                 `json:"method,omitempty"`
	Path         string                 `json:"path,omitempty"`
	Status       int                    `json:"status,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Attempt      int                    `json:"attempt,omitempty"`
	Completed    int64                  `json:"completed,omitempty"`
	Total        int                    `json:"total,omitempty"`
	DurationMs   int64                  `json:"duration_ms,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to log.jsonl inside dir.
// Creates dir if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(dir, "log.jsonl"),
	}, nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Append writes a single LogEvent as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// The file is opened in append mode, written to, and then closed.
// Thread-safe via mutex. A nil Logger discards events.
func (l *Logger) Append(event LogEvent) error {
	if l == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// Emit is Append for call sites that have nowhere to report a logging
// failure. Write errors go to stderr.
func (l *Logger) Emit(event LogEvent) {
	if err := l.Append(event); err != nil {
		fmt.Fprintf(os.Stderr, "mabel: %v\n", err)
	}
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}
