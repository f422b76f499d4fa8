package repair

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/selfheal/internal/eventstore"
	"git.home.luguber.info/inful/selfheal/internal/metrics"
	"git.home.luguber.info/inful/selfheal/internal/notify"
)

type fakeRecorder struct {
	metrics.NoopRecorder
	builds   []bool
	exts     []string
	sessions []string
	publish  []metrics.ResultLabel
}

func (f *fakeRecorder) ObserveBuild(_ time.Duration, passed bool) { f.builds = append(f.builds, passed) }
func (f *fakeRecorder) IncFixApplied(ext string)                 { f.exts = append(f.exts, ext) }
func (f *fakeRecorder) ObserveSession(state string, _ time.Duration) {
	f.sessions = append(f.sessions, state)
}
func (f *fakeRecorder) IncPublish(r metrics.ResultLabel) { f.publish = append(f.publish, r) }

type fakeNotifier struct {
	events []notify.SessionEvent
	err    error
}

func (f *fakeNotifier) PublishSession(_ context.Context, ev notify.SessionEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakeMailbox struct{ clears int }

func (f *fakeMailbox) Clear() (bool, error) { f.clears++; return true, nil }

func TestObservers_FullSession(t *testing.T) {
	h := newHarness(t, map[string]string{pageFile: brokenMark + "\n"}, fixedPage)

	rec := &fakeRecorder{}
	store, err := eventstore.NewSQLiteStore(eventstore.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	notifier := &fakeNotifier{err: errors.New("nats down")}
	mb := &fakeMailbox{}

	l := h.loop(defaultOptions(),
		NewMetricsObserver(rec),
		NewJournalObserver(store, eventstore.SessionStartedMeta{Root: h.root, Command: "npm run build", MaxRetries: 5}),
		NewNotifyObserver(notifier),
		NewMailboxObserver(mb),
	)
	s, err := l.Run(context.Background(), TriggerMailbox)
	require.NoError(t, err)
	require.Equal(t, StateStable, s.State)

	assert.Equal(t, []bool{false, true}, rec.builds)
	assert.Equal(t, []string{"tsx"}, rec.exts)
	assert.Equal(t, []string{"stable"}, rec.sessions)
	assert.Equal(t, []metrics.ResultLabel{metrics.ResultSuccess}, rec.publish)

	events, err := store.GetBySession(context.Background(), s.ID)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type())
	}
	assert.Equal(t, []string{
		eventstore.TypeSessionStarted,
		eventstore.TypeBuildCompleted,
		eventstore.TypeFixApplied,
		eventstore.TypeBuildCompleted,
		eventstore.TypeSessionFinished,
	}, types)

	projection := eventstore.NewSessionHistoryProjection(store, 10)
	require.NoError(t, projection.Rebuild(context.Background()))
	summary, ok := projection.GetSession(s.ID)
	require.True(t, ok)
	assert.Equal(t, "stable", summary.Status)
	assert.Equal(t, "mailbox", summary.Trigger)
	assert.Equal(t, []string{pageFile}, summary.Files)
	assert.Equal(t, "auto-fix-1", summary.Branch)

	require.Len(t, notifier.events, 1, "notification failures are logged only")
	assert.Equal(t, "stable", notifier.events[0].State)
	assert.Equal(t, []string{pageFile}, notifier.events[0].Files)

	assert.Equal(t, 1, mb.clears)
}

func TestMailboxObserver_OnlyClearsAfterRepair(t *testing.T) {
	mb := &fakeMailbox{}
	o := NewMailboxObserver(mb)
	ctx := context.Background()

	o.SessionFinished(ctx, &Session{State: StateStable})
	o.SessionFinished(ctx, &Session{State: StateFailedNoFix, Attempts: []Attempt{{Index: 1}}})
	o.SessionFinished(ctx, &Session{State: StateStable, Attempts: []Attempt{{Index: 1}}, Publish: &PublishOutcome{Err: errors.New("x")}})
	assert.Equal(t, 0, mb.clears)

	o.SessionFinished(ctx, &Session{State: StateStable, Attempts: []Attempt{{Index: 1}}, Publish: &PublishOutcome{Skipped: true}})
	assert.Equal(t, 1, mb.clears)
}

func TestMetricsObserver_PublishLabels(t *testing.T) {
	rec := &fakeRecorder{}
	o := NewMetricsObserver(rec)
	ctx := context.Background()
	o.SessionFinished(ctx, &Session{State: StateStable, Publish: &PublishOutcome{Skipped: true}})
	o.SessionFinished(ctx, &Session{State: StateStable, Publish: &PublishOutcome{Err: errors.New("x")}})
	o.SessionFinished(ctx, &Session{State: StateFailedNoTarget})
	assert.Equal(t, []metrics.ResultLabel{metrics.ResultSkipped, metrics.ResultFailed}, rec.publish)
	assert.Equal(t, []string{"stable", "stable", "failed_no_target"}, rec.sessions)

	assert.NotPanics(t, func() { NewMetricsObserver(nil).FixApplied(ctx, &Session{}, Attempt{TargetFile: "a.ts"}) })
}
