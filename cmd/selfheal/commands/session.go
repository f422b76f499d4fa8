package commands

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/selfheal/internal/analyzer"
	"git.home.luguber.info/inful/selfheal/internal/build"
	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/eventstore"
	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
	"git.home.luguber.info/inful/selfheal/internal/git"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/mailbox"
	"git.home.luguber.info/inful/selfheal/internal/metrics"
	"git.home.luguber.info/inful/selfheal/internal/notify"
	"git.home.luguber.info/inful/selfheal/internal/provider"
	"git.home.luguber.info/inful/selfheal/internal/repair"
	"git.home.luguber.info/inful/selfheal/internal/retry"
	"git.home.luguber.info/inful/selfheal/internal/workspace"
)

// sessionEnv is a repair loop wired from configuration together with the
// resources it owns.
type sessionEnv struct {
	cfg     *config.Config
	root    string
	runner  *build.ShellRunner
	loop    *repair.Loop
	closers []io.Closer
}

// newSessionEnv composes the loop for root. The journal and notifier are
// optional: when they cannot be opened the session runs without them.
func newSessionEnv(cfg *config.Config, root string, rec metrics.Recorder) (*sessionEnv, error) {
	rec = metrics.OrNoop(rec)
	env := &sessionEnv{
		cfg:    cfg,
		root:   root,
		runner: build.NewShellRunner(root, cfg.Workspace.AppDir, cfg.Build.TimeoutDuration()),
	}

	an, err := analyzer.FromConfig(cfg, root)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid analyzer configuration").Build()
	}
	chain, err := provider.ChainFromConfig(cfg, rec)
	if err != nil {
		return nil, err
	}

	deps := repair.Deps{
		Runner:   env.runner,
		Analyzer: an,
		Fixer:    chain,
		Files:    workspace.NewPatcher(root),
	}
	if cfg.Publish.IsEnabled() {
		deps.Publisher = git.NewPublisher(root, git.PublishOptions{
			BranchPrefix:  cfg.Publish.BranchPrefix,
			CommitMessage: cfg.Publish.CommitMessage,
			AuthorName:    cfg.Publish.AuthorName,
			AuthorEmail:   cfg.Publish.AuthorEmail,
			Remote:        cfg.Publish.Remote,
			Auth:          git.TokenAuth(cfg.Credentials.GitUsername, cfg.Credentials.GitHubToken),
		})
	}

	observers := []repair.Observer{repair.NewMetricsObserver(rec)}
	if cfg.History.Enabled {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			slog.Warn("Session history disabled", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			env.closers = append(env.closers, store)
			observers = append(observers, repair.NewJournalObserver(store, eventstore.SessionStartedMeta{
				Root:       root,
				Command:    cfg.Build.Command,
				MaxRetries: cfg.Repair.MaxRetries,
			}))
		}
	}
	if cfg.Notify.Enabled {
		n, err := notify.NewNATSNotifier(cfg.Notify)
		if err != nil {
			slog.Warn("Session notifications disabled", logfields.URL(cfg.Notify.URL), logfields.Error(err))
		} else {
			env.closers = append(env.closers, n)
			observers = append(observers, repair.NewNotifyObserver(n))
		}
	}
	if cfg.Mailbox.ClearOnSuccess {
		observers = append(observers, repair.NewMailboxObserver(mailbox.New(cfg.Mailbox.Path)))
	}

	env.loop = repair.NewLoop(repair.OptionsFromConfig(cfg), deps, observers...)
	return env, nil
}

// Setup runs workspace.setup_command, if any, in the session root.
func (e *sessionEnv) Setup(ctx context.Context) error {
	command := e.cfg.Workspace.SetupCommand
	if command == "" {
		return nil
	}
	slog.Info("Running setup command", logfields.Command(command), logfields.Dir(e.runner.ResolveDir(command)))
	res := e.runner.Run(ctx, command)
	return build.AsError(command, res)
}

// Run executes one session.
func (e *sessionEnv) Run(ctx context.Context, trigger repair.Trigger) (*repair.Session, error) {
	return e.loop.Run(ctx, trigger)
}

// Close releases the journal and notifier.
func (e *sessionEnv) Close() {
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close session resource", logfields.Error(err))
		}
	}
	e.closers = nil
}

// checkout is the prepared session root. Cleanup removes ephemeral clones.
type checkout struct {
	Root    string
	Cleanup func()
}

// prepareCheckout returns the configured root, or clones REPO_URL first when
// clone is set.
func prepareCheckout(ctx context.Context, cfg *config.Config, clone, ephemeral bool) (*checkout, error) {
	if !clone {
		root, err := filepath.Abs(cfg.Workspace.Root)
		if err != nil {
			return nil, ferrors.FileSystemError("resolve workspace root").WithCause(err).Build()
		}
		return &checkout{Root: root, Cleanup: func() {}}, nil
	}

	repoURL := cfg.Credentials.RepoURL
	if repoURL == "" {
		return nil, ferrors.ConfigError(config.EnvRepoURL+" is required to clone the workspace").
			WithHint("export " + config.EnvRepoURL + " (and " + config.EnvGitHubToken + " for private repositories) or drop --clone").
			Build()
	}

	var mgr *workspace.Manager
	if ephemeral {
		mgr = workspace.NewEphemeralManager("")
	} else {
		mgr = workspace.NewManager(cfg.Workspace.CloneDir)
	}
	if err := mgr.Prepare(); err != nil {
		return nil, ferrors.FileSystemError("prepare clone directory").WithCause(err).Build()
	}
	cleanup := func() {
		if err := mgr.Cleanup(); err != nil {
			slog.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}

	auth := git.TokenAuth(cfg.Credentials.GitUsername, cfg.Credentials.GitHubToken)
	cloner := git.NewCloner(auth, retry.FromConfig(cfg.Providers.Retry))
	head, err := cloner.Clone(ctx, repoURL, mgr.Path(), cfg.Workspace.CloneDepth)
	if err != nil {
		cleanup()
		return nil, err
	}
	root, err := filepath.Abs(mgr.Path())
	if err != nil {
		cleanup()
		return nil, ferrors.FileSystemError("resolve clone directory").WithCause(err).Build()
	}
	slog.Info("Workspace cloned", logfields.Path(root), logfields.Commit(head))
	return &checkout{Root: root, Cleanup: cleanup}, nil
}
