// Package repair drives the build, analyze, fix and rebuild cycle until the
// build passes or the retry budget runs out, then publishes the changes.
package repair

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/selfheal/internal/build"
	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/git"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/provider"
	"git.home.luguber.info/inful/selfheal/internal/workspace"
)

// Analyzer locates the broken file in a failing build log.
type Analyzer interface {
	DetectBrokenFile(rawLog string) (string, bool)
}

// FixProvider produces replacement content for a broken file.
type FixProvider interface {
	GenerateFix(ctx context.Context, errorLog, targetFile, currentContent string) (provider.Fix, bool)
}

// Files reads and writes workspace files by root-relative path.
type Files interface {
	Read(rel string) (string, error)
	Write(rel, content string) error
	WriteArtifact(rel, content string) (string, error)
}

// Publisher commits and pushes the accumulated changes, leaving the
// exclude paths out of the commit.
type Publisher interface {
	Publish(ctx context.Context, label string, exclude ...string) (git.PublishResult, error)
}

// Options holds the loop settings.
type Options struct {
	MaxRetries         int
	BuildCommand       string
	DebugLog           string
	RejectRepeated     bool
	PublishEnabled     bool
	FailOnPublishError bool
	// PublishExclude lists files written by selfheal itself that must never
	// be committed. The debug log is always excluded.
	PublishExclude []string
}

// OptionsFromConfig extracts the loop settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRetries:         cfg.Repair.MaxRetries,
		BuildCommand:       cfg.Build.Command,
		DebugLog:           cfg.Repair.DebugLog,
		RejectRepeated:     cfg.Repair.RejectRepeated(),
		PublishEnabled:     cfg.Publish.IsEnabled(),
		FailOnPublishError: cfg.Publish.FailOnError,
		PublishExclude:     artifactPaths(cfg),
	}
}

// artifactPaths returns the absolute mailbox and history paths. Both are
// resolved against the working directory, not the workspace root.
func artifactPaths(cfg *config.Config) []string {
	var paths []string
	for _, p := range []string{cfg.Mailbox.Path, cfg.History.Path} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			paths = append(paths, abs)
		}
	}
	return paths
}

// Deps are the collaborators of a Loop. Publisher may be nil when
// publishing is disabled.
type Deps struct {
	Runner    build.Runner
	Analyzer  Analyzer
	Fixer     FixProvider
	Files     Files
	Publisher Publisher
}

// Loop is the repair state machine. A Loop may run several sessions, one at
// a time.
type Loop struct {
	opts      Options
	deps      Deps
	observers []Observer
	now       func() time.Time
	newID     func() string
}

// NewLoop returns a loop over deps.
func NewLoop(opts Options, deps Deps, observers ...Observer) *Loop {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = config.DefaultMaxRetries
	}
	if opts.BuildCommand == "" {
		opts.BuildCommand = config.DefaultBuildCommand
	}
	if opts.DebugLog == "" {
		opts.DebugLog = config.DefaultDebugLog
	}
	return &Loop{
		opts:      opts,
		deps:      deps,
		observers: observers,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Options returns the effective settings.
func (l *Loop) Options() Options { return l.opts }

// Run executes one session to a terminal state. The returned error is
// reserved for the session context ending; every other outcome is described
// by the session.
func (l *Loop) Run(ctx context.Context, trigger Trigger) (*Session, error) {
	s := &Session{
		ID:        l.newID(),
		Trigger:   trigger,
		State:     StateRunning,
		StartedAt: l.now(),
	}
	log := slog.With(logfields.SessionID(s.ID))
	log.Info("Repair session started",
		logfields.Command(l.opts.BuildCommand),
		slog.Int("max_retries", l.opts.MaxRetries),
		slog.String("trigger", string(trigger)))
	l.notify(func(o Observer) { o.SessionStarted(ctx, s) })

	seen := make(map[string]map[string]struct{})
	err := l.iterate(ctx, s, log, seen)

	s.FinishedAt = l.now()
	l.logOutcome(log, s)
	final := context.WithoutCancel(ctx)
	l.notify(func(o Observer) { o.SessionFinished(final, s) })
	return s, err
}

func (l *Loop) iterate(ctx context.Context, s *Session, log *slog.Logger, seen map[string]map[string]struct{}) error {
	for s.BuildRuns < l.opts.MaxRetries {
		if err := ctx.Err(); err != nil {
			s.State = StateCanceled
			return err
		}

		s.BuildRuns++
		log.Info("Running build", logfields.Attempt(s.BuildRuns), logfields.Command(l.opts.BuildCommand))
		res := l.deps.Runner.Run(ctx, l.opts.BuildCommand)
		l.notify(func(o Observer) { o.BuildFinished(ctx, s, res) })

		if res.Succeeded() {
			s.State = StateStable
			l.publish(ctx, s, log)
			return nil
		}
		if err := ctx.Err(); err != nil {
			s.State = StateCanceled
			return err
		}
		log.Warn("Build failed", logfields.Attempt(s.BuildRuns), logfields.ExitCode(res.ExitCode))

		target, ok := l.deps.Analyzer.DetectBrokenFile(res.Output)
		if !ok {
			s.State = StateFailedNoTarget
			s.Reason = ReasonNoCandidates
			l.writeDebugLog(s, log, res.Output)
			return nil
		}
		log.Info("Identified broken file", logfields.File(target))

		original, err := l.deps.Files.Read(target)
		if err != nil {
			log.Error("Failed to read target file", logfields.File(target), logfields.Error(err))
			s.State = StateFailedNoFix
			s.Reason = ReasonUnreadable
			return nil
		}

		fix, ok := l.deps.Fixer.GenerateFix(ctx, res.Output, target, original)
		if !ok {
			if err := ctx.Err(); err != nil {
				s.State = StateCanceled
				return err
			}
			s.State = StateFailedNoFix
			s.Reason = ReasonNoProvider
			return nil
		}
		fixed := workspace.MatchTrailingNewline(original, fix.Content)

		contents := seen[target]
		if contents == nil {
			contents = make(map[string]struct{})
			seen[target] = contents
		}
		contents[original] = struct{}{}
		if _, repeated := contents[fixed]; repeated && l.opts.RejectRepeated {
			log.Warn("Rejected fix identical to earlier content", logfields.File(target), logfields.Provider(fix.Provider))
			s.State = StateFailedNoFix
			s.Reason = ReasonRepeatedFix
			return nil
		}

		if err := l.deps.Files.Write(target, fixed); err != nil {
			log.Error("Failed to write fix", logfields.File(target), logfields.Error(err))
			s.State = StateFailedNoFix
			s.Reason = ReasonWriteFailed
			return nil
		}
		contents[fixed] = struct{}{}

		a := Attempt{
			Index:           len(s.Attempts) + 1,
			TargetFile:      target,
			OriginalContent: original,
			FixedContent:    fixed,
			Provider:        fix.Provider,
		}
		s.Attempts = append(s.Attempts, a)
		log.Info("Applied fix", logfields.Attempt(a.Index), logfields.File(target),
			logfields.Provider(fix.Provider), logfields.Bytes(len(fixed)))
		l.notify(func(o Observer) { o.FixApplied(ctx, s, a) })
	}

	s.State = StateFailedMaxRetries
	return nil
}

func (l *Loop) publish(ctx context.Context, s *Session, log *slog.Logger) {
	if !s.FixesApplied() {
		log.Info("No repair was needed")
		return
	}
	if !l.opts.PublishEnabled || l.deps.Publisher == nil {
		s.Publish = &PublishOutcome{Skipped: true}
		log.Info("Publishing disabled, leaving changes in the working tree")
		return
	}

	exclude := append([]string{l.opts.DebugLog}, l.opts.PublishExclude...)
	res, err := l.deps.Publisher.Publish(ctx, s.ID, exclude...)
	s.Publish = &PublishOutcome{
		Branch: res.Branch,
		Commit: res.Commit,
		Remote: res.Remote,
		Err:    err,
		Fatal:  l.opts.FailOnPublishError,
	}
	if err != nil {
		log.Error("Publish failed", logfields.Branch(res.Branch), logfields.Error(err))
	}
}

func (l *Loop) writeDebugLog(s *Session, log *slog.Logger, output string) {
	path, err := l.deps.Files.WriteArtifact(l.opts.DebugLog, output)
	if err != nil {
		log.Error("Failed to write debug log", logfields.Path(l.opts.DebugLog), logfields.Error(err))
		return
	}
	s.DebugLogPath = path
}

func (l *Loop) logOutcome(log *slog.Logger, s *Session) {
	attrs := []any{
		logfields.State(string(s.State)),
		slog.Int("attempts", len(s.Attempts)),
		slog.Int("builds", s.BuildRuns),
		logfields.DurationMS(float64(s.Duration().Milliseconds())),
	}
	switch s.ExitCode() {
	case ExitStable:
		log.Info(s.Message(), attrs...)
	default:
		log.Error(s.Message(), attrs...)
	}
}

func (l *Loop) notify(fn func(Observer)) {
	for _, o := range l.observers {
		fn(o)
	}
}
