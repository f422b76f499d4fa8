package repair

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/selfheal/internal/build"
	"git.home.luguber.info/inful/selfheal/internal/eventstore"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/metrics"
	"git.home.luguber.info/inful/selfheal/internal/notify"
)

// Observer receives session lifecycle callbacks. Observers must not block
// for long and never influence the session outcome.
type Observer interface {
	SessionStarted(ctx context.Context, s *Session)
	BuildFinished(ctx context.Context, s *Session, res build.Result)
	FixApplied(ctx context.Context, s *Session, a Attempt)
	SessionFinished(ctx context.Context, s *Session)
}

// BaseObserver implements Observer with no-ops for embedding.
type BaseObserver struct{}

func (BaseObserver) SessionStarted(context.Context, *Session)              {}
func (BaseObserver) BuildFinished(context.Context, *Session, build.Result) {}
func (BaseObserver) FixApplied(context.Context, *Session, Attempt)         {}
func (BaseObserver) SessionFinished(context.Context, *Session)             {}

// MetricsObserver records session metrics.
type MetricsObserver struct {
	rec metrics.Recorder
}

// NewMetricsObserver wraps r (nil means no-op).
func NewMetricsObserver(r metrics.Recorder) *MetricsObserver {
	return &MetricsObserver{rec: metrics.OrNoop(r)}
}

func (m *MetricsObserver) SessionStarted(context.Context, *Session) {}

func (m *MetricsObserver) BuildFinished(_ context.Context, _ *Session, res build.Result) {
	m.rec.ObserveBuild(res.Duration, res.Succeeded())
}

func (m *MetricsObserver) FixApplied(_ context.Context, _ *Session, a Attempt) {
	m.rec.IncFixApplied(strings.TrimPrefix(filepath.Ext(a.TargetFile), "."))
}

func (m *MetricsObserver) SessionFinished(_ context.Context, s *Session) {
	m.rec.ObserveSession(string(s.State), s.Duration())
	if s.Publish == nil {
		return
	}
	switch {
	case s.Publish.Skipped:
		m.rec.IncPublish(metrics.ResultSkipped)
	case s.Publish.Err != nil:
		m.rec.IncPublish(metrics.ResultFailed)
	default:
		m.rec.IncPublish(metrics.ResultSuccess)
	}
}

// JournalObserver appends session events to an event store. Append
// failures are logged and otherwise ignored.
type JournalObserver struct {
	store eventstore.Store
	meta  eventstore.SessionStartedMeta
}

// NewJournalObserver records sessions into store. meta supplies the root
// and command fields of each SessionStarted event.
func NewJournalObserver(store eventstore.Store, meta eventstore.SessionStartedMeta) *JournalObserver {
	return &JournalObserver{store: store, meta: meta}
}

func (j *JournalObserver) append(ctx context.Context, e eventstore.Event, err error) {
	if err == nil {
		err = eventstore.AppendEvent(ctx, j.store, e)
	}
	if err != nil {
		slog.Warn("Failed to journal session event", logfields.Error(err))
	}
}

func (j *JournalObserver) SessionStarted(ctx context.Context, s *Session) {
	meta := j.meta
	meta.Trigger = string(s.Trigger)
	e, err := eventstore.NewSessionStarted(s.ID, meta)
	j.append(ctx, e, err)
}

func (j *JournalObserver) BuildFinished(ctx context.Context, s *Session, res build.Result) {
	e, err := eventstore.NewBuildCompleted(s.ID, s.BuildRuns, res.ExitCode, res.Duration)
	j.append(ctx, e, err)
}

func (j *JournalObserver) FixApplied(ctx context.Context, s *Session, a Attempt) {
	e, err := eventstore.NewFixApplied(s.ID, a.Index, a.TargetFile, a.Provider, len(a.FixedContent))
	j.append(ctx, e, err)
}

func (j *JournalObserver) SessionFinished(ctx context.Context, s *Session) {
	e, err := eventstore.NewSessionFinished(s.ID, finishedMeta(s))
	j.append(ctx, e, err)
}

func finishedMeta(s *Session) eventstore.SessionFinishedMeta {
	meta := eventstore.SessionFinishedMeta{
		State:     string(s.State),
		Reason:    s.Reason,
		Attempts:  len(s.Attempts),
		BuildRuns: s.BuildRuns,
		ExitCode:  s.ExitCode(),
	}
	if p := s.Publish; p != nil {
		meta.Branch = p.Branch
		meta.Commit = p.Commit
		if p.Err != nil {
			meta.PublishError = p.Err.Error()
		}
	}
	return meta
}

// SessionPublisher is implemented by notify.NATSNotifier.
type SessionPublisher interface {
	PublishSession(ctx context.Context, ev notify.SessionEvent) error
}

// NotifyObserver publishes the outcome of each finished session.
type NotifyObserver struct {
	BaseObserver
	pub SessionPublisher
}

// NewNotifyObserver publishes through pub.
func NewNotifyObserver(pub SessionPublisher) *NotifyObserver {
	return &NotifyObserver{pub: pub}
}

func (n *NotifyObserver) SessionFinished(ctx context.Context, s *Session) {
	if err := n.pub.PublishSession(ctx, SessionEvent(s)); err != nil {
		slog.Warn("Failed to publish session notification", logfields.SessionID(s.ID), logfields.Error(err))
	}
}

// SessionEvent converts a finished session into its notification message.
func SessionEvent(s *Session) notify.SessionEvent {
	meta := finishedMeta(s)
	return notify.SessionEvent{
		SessionID:    s.ID,
		State:        meta.State,
		Reason:       meta.Reason,
		Message:      s.Message(),
		ExitCode:     meta.ExitCode,
		Attempts:     meta.Attempts,
		BuildRuns:    meta.BuildRuns,
		Files:        s.Files(),
		Branch:       meta.Branch,
		Commit:       meta.Commit,
		PublishError: meta.PublishError,
		DurationMS:   s.Duration().Milliseconds(),
		Timestamp:    s.FinishedAt,
	}
}

// MailboxClearer empties the deployment error mailbox.
type MailboxClearer interface {
	Clear() (bool, error)
}

// MailboxObserver clears the mailbox after a stable session that applied
// fixes and published them (or had publishing disabled).
type MailboxObserver struct {
	BaseObserver
	mb MailboxClearer
}

// NewMailboxObserver clears mb on success.
func NewMailboxObserver(mb MailboxClearer) *MailboxObserver {
	return &MailboxObserver{mb: mb}
}

func (m *MailboxObserver) SessionFinished(_ context.Context, s *Session) {
	if s.State != StateStable || !s.FixesApplied() || (s.Publish != nil && s.Publish.Err != nil) {
		return
	}
	if _, err := m.mb.Clear(); err != nil {
		slog.Warn("Failed to clear mailbox", logfields.Error(err))
	}
}
