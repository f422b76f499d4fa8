package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// Event type names stored in the journal.
const (
	TypeSessionStarted  = "SessionStarted"
	TypeBuildCompleted  = "BuildCompleted"
	TypeFixApplied      = "FixApplied"
	TypeSessionFinished = "SessionFinished"
)

func newBase(sessionID, eventType string, payload any) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("session_id", sessionID).
			Build()
	}
	return BaseEvent{
		EventSessionID: sessionID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// SessionStartedMeta describes how a session was started.
type SessionStartedMeta struct {
	Root       string `json:"root"`
	Command    string `json:"command"`
	MaxRetries int    `json:"max_retries"`
	Trigger    string `json:"trigger,omitempty"` // manual, scheduled, mailbox
}

// SessionStarted is emitted when a repair session begins.
type SessionStarted struct {
	BaseEvent
	Meta SessionStartedMeta `json:"meta"`
}

// NewSessionStarted creates a SessionStarted event.
func NewSessionStarted(sessionID string, meta SessionStartedMeta) (*SessionStarted, error) {
	base, err := newBase(sessionID, TypeSessionStarted, meta)
	if err != nil {
		return nil, err
	}
	return &SessionStarted{BaseEvent: base, Meta: meta}, nil
}

// BuildCompleted is emitted after every build invocation.
type BuildCompleted struct {
	BaseEvent
	Run      int           `json:"run"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ms"`
}

// NewBuildCompleted creates a BuildCompleted event.
func NewBuildCompleted(sessionID string, run, exitCode int, duration time.Duration) (*BuildCompleted, error) {
	base, err := newBase(sessionID, TypeBuildCompleted, map[string]any{
		"run":         run,
		"exit_code":   exitCode,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &BuildCompleted{BaseEvent: base, Run: run, ExitCode: exitCode, Duration: duration}, nil
}

// FixApplied is emitted when a generated fix was written to disk.
type FixApplied struct {
	BaseEvent
	Attempt  int    `json:"attempt"`
	File     string `json:"file"`
	Provider string `json:"provider"`
	Bytes    int    `json:"bytes"`
}

// NewFixApplied creates a FixApplied event.
func NewFixApplied(sessionID string, attempt int, file, provider string, size int) (*FixApplied, error) {
	base, err := newBase(sessionID, TypeFixApplied, map[string]any{
		"attempt":  attempt,
		"file":     file,
		"provider": provider,
		"bytes":    size,
	})
	if err != nil {
		return nil, err
	}
	return &FixApplied{BaseEvent: base, Attempt: attempt, File: file, Provider: provider, Bytes: size}, nil
}

// SessionFinishedMeta carries the outcome of a session.
type SessionFinishedMeta struct {
	State        string `json:"state"`
	Reason       string `json:"reason,omitempty"`
	Attempts     int    `json:"attempts"`
	BuildRuns    int    `json:"build_runs"`
	Branch       string `json:"branch,omitempty"`
	Commit       string `json:"commit,omitempty"`
	PublishError string `json:"publish_error,omitempty"`
	ExitCode     int    `json:"exit_code"`
}

// SessionFinished is emitted once per session when it reaches a terminal state.
type SessionFinished struct {
	BaseEvent
	Meta SessionFinishedMeta `json:"meta"`
}

// NewSessionFinished creates a SessionFinished event.
func NewSessionFinished(sessionID string, meta SessionFinishedMeta) (*SessionFinished, error) {
	base, err := newBase(sessionID, TypeSessionFinished, meta)
	if err != nil {
		return nil, err
	}
	return &SessionFinished{BaseEvent: base, Meta: meta}, nil
}
