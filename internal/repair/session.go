package repair

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// State is the repair session state.
type State string

const (
	StateRunning          State = "running"
	StateStable           State = "stable"
	StateFailedNoTarget   State = "failed_no_target"
	StateFailedNoFix      State = "failed_no_fix"
	StateFailedMaxRetries State = "failed_max_retries"
	// StateCanceled is reached when the session context ends before any
	// other terminal state.
	StateCanceled State = "canceled"
)

// Terminal reports whether s ends a session.
func (s State) Terminal() bool { return s != StateRunning && s != "" }

// Trigger records what started a session.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerMailbox   Trigger = "mailbox"
)

// Exit codes reported for a finished session.
const (
	ExitStable   = 0
	ExitFailed   = 1
	ExitCanceled = 130
)

// Reasons recorded for failed_no_fix.
const (
	ReasonNoProvider   = "all fix providers failed"
	ReasonRepeatedFix  = "repeated fix"
	ReasonUnreadable   = "target file unreadable"
	ReasonWriteFailed  = "fix could not be written"
	ReasonNoCandidates = "no broken file found in build output"
)

// Attempt is one generated and applied fix.
type Attempt struct {
	Index           int // 1-based
	TargetFile      string
	OriginalContent string
	FixedContent    string
	Provider        string
}

// PublishOutcome describes the publish step of a stable session.
type PublishOutcome struct {
	Skipped bool // publishing disabled
	Branch  string
	Commit  string
	Remote  string
	Err     error
	Fatal   bool // Err turns the exit code into a failure
}

// Session is the in-memory record of one repair run.
type Session struct {
	ID           string
	Trigger      Trigger
	Attempts     []Attempt
	State        State
	Reason       string
	BuildRuns    int
	Publish      *PublishOutcome
	DebugLogPath string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// FixesApplied reports whether at least one fix was written.
func (s *Session) FixesApplied() bool { return len(s.Attempts) > 0 }

// Duration is the wall time between start and finish.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Files lists the target file of each attempt, in order.
func (s *Session) Files() []string {
	out := make([]string, len(s.Attempts))
	for i, a := range s.Attempts {
		out[i] = a.TargetFile
	}
	return out
}

// ExitCode maps the terminal state to the process exit code.
func (s *Session) ExitCode() int {
	switch s.State {
	case StateStable:
		if s.Publish != nil && s.Publish.Err != nil && s.Publish.Fatal {
			return ExitFailed
		}
		return ExitStable
	case StateCanceled:
		return ExitCanceled
	default:
		return ExitFailed
	}
}

// Message is the single explanatory line for the terminal state.
func (s *Session) Message() string {
	switch s.State {
	case StateStable:
		if !s.FixesApplied() {
			return "Build passed on the first check, no repair was needed"
		}
		fixes := plural(len(s.Attempts), "fix", "fixes")
		switch {
		case s.Publish == nil || s.Publish.Skipped:
			return fmt.Sprintf("Build stable after %s, publishing disabled", fixes)
		case s.Publish.Err != nil:
			return fmt.Sprintf("Build stable after %s, publish failed: %v", fixes, s.Publish.Err)
		default:
			return fmt.Sprintf("Build stable after %s, pushed branch %s", fixes, s.Publish.Branch)
		}
	case StateFailedNoTarget:
		if s.DebugLogPath != "" {
			return "Could not identify the broken file, build output saved to " + s.DebugLogPath
		}
		return "Could not identify the broken file"
	case StateFailedNoFix:
		return "No fix could be applied: " + s.Reason
	case StateFailedMaxRetries:
		return fmt.Sprintf("Build still failing after %s", plural(s.BuildRuns, "build", "builds"))
	case StateCanceled:
		return "Session canceled"
	default:
		return "Session still running"
	}
}

// Err returns a classified error for sessions with a non-zero exit code.
func (s *Session) Err() error {
	if s.ExitCode() == ExitStable {
		return nil
	}
	if s.State == StateCanceled {
		return errors.WrapError(context.Canceled, errors.CategoryRuntime, s.Message()).
			WithContext("session_id", s.ID).
			Build()
	}
	return errors.RepairError(s.Message()).
		WithContext("session_id", s.ID).
		WithContext("state", string(s.State)).
		WithContext("attempts", len(s.Attempts)).
		Build()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
