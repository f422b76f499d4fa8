// Package eventstore records repair sessions as an append-only journal of
// events and rebuilds session summaries from it.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const sessionStatusRunning = "running"

// SessionSummary is a read model summarizing one repair session.
type SessionSummary struct {
	SessionID    string        `json:"session_id"`
	Status       string        `json:"status"` // "running" or the terminal state
	Trigger      string        `json:"trigger,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	BuildRuns    int           `json:"build_runs"`
	Files        []string      `json:"files,omitempty"`
	Providers    []string      `json:"providers,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Branch       string        `json:"branch,omitempty"`
	Commit       string        `json:"commit,omitempty"`
	PublishError string        `json:"publish_error,omitempty"`
	ExitCode     int           `json:"exit_code"`
}

// Attempts returns the number of fixes applied in the session.
func (s *SessionSummary) Attempts() int { return len(s.Files) }

// SessionHistoryProjection maintains an in-memory view of session history,
// reconstructed from events stored in the journal.
type SessionHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	sessions map[string]*SessionSummary
	maxSize  int
}

// NewSessionHistoryProjection creates a new projection backed by the given store.
func NewSessionHistoryProjection(store Store, maxHistorySize int) *SessionHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &SessionHistoryProjection{
		store:    store,
		sessions: make(map[string]*SessionSummary),
		maxSize:  maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *SessionHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions = make(map[string]*SessionSummary)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	return nil
}

// Apply processes a single event and updates the projection.
func (p *SessionHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *SessionHistoryProjection) applyEventLocked(event Event) {
	id := event.SessionID()
	if id == "" {
		return
	}

	summary, exists := p.sessions[id]
	if !exists {
		summary = &SessionSummary{
			SessionID: id,
			Status:    sessionStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.sessions[id] = summary
	}

	switch event.Type() {
	case TypeSessionStarted:
		summary.StartedAt = event.Timestamp()
		var meta SessionStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Trigger = meta.Trigger
		}

	case TypeBuildCompleted:
		summary.BuildRuns++

	case TypeFixApplied:
		var payload struct {
			File     string `json:"file"`
			Provider string `json:"provider"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Files = append(summary.Files, payload.File)
			summary.Providers = append(summary.Providers, payload.Provider)
		}

	case TypeSessionFinished:
		now := event.Timestamp()
		summary.FinishedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		var meta SessionFinishedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Status = meta.State
			summary.Reason = meta.Reason
			summary.Branch = meta.Branch
			summary.Commit = meta.Commit
			summary.PublishError = meta.PublishError
			summary.ExitCode = meta.ExitCode
			if meta.BuildRuns > summary.BuildRuns {
				summary.BuildRuns = meta.BuildRuns
			}
		}
		p.pruneLocked()
	}
}

// pruneLocked drops the oldest finished sessions beyond maxSize.
// Caller must hold p.mu (write lock).
func (p *SessionHistoryProjection) pruneLocked() {
	finished := p.finishedLocked()
	for _, s := range finished[min(len(finished), p.maxSize):] {
		delete(p.sessions, s.SessionID)
	}
}

func (p *SessionHistoryProjection) finishedLocked() []*SessionSummary {
	out := make([]*SessionSummary, 0, len(p.sessions))
	for _, s := range p.sessions {
		if s.Status != sessionStatusRunning {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// GetHistory returns copies of the finished sessions, newest first.
func (p *SessionHistoryProjection) GetHistory() []SessionSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	finished := p.finishedLocked()
	result := make([]SessionSummary, len(finished))
	for i, s := range finished {
		result[i] = *s
	}
	return result
}

// GetSession returns the summary for a specific session.
func (p *SessionHistoryProjection) GetSession(id string) (SessionSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.sessions[id]
	if !exists {
		return SessionSummary{}, false
	}
	return *summary, true
}

// GetActiveSession returns a session that has not finished yet, if any.
func (p *SessionHistoryProjection) GetActiveSession() (SessionSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range p.sessions {
		if s.Status == sessionStatusRunning {
			return *s, true
		}
	}
	return SessionSummary{}, false
}
