package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default values shared by Init and the default appliers.
const (
	DefaultAppDir        = "broken-app"
	DefaultBuildCommand  = "npm run build"
	DefaultMaxRetries    = 5
	DefaultDebugLog      = "build_failure.log"
	DefaultLogWindow     = 2000
	DefaultBranchPrefix  = "auto-fix"
	DefaultCommitMessage = "Fix: Auto-repaired build errors"
	DefaultAuthorName    = "Self-Healing Agent"
	DefaultAuthorEmail   = "selfheal-agent@example.com"
	DefaultRemote        = "origin"
	DefaultMailboxPath   = "shared/deployment_errors.log"
	DefaultCloneDir      = "project_code"
	DefaultHistoryPath   = ".selfheal/history.db" // fallback when no user cache directory exists
	DefaultNotifySubject = "selfheal.sessions"
	DefaultMetricsPath   = "/metrics"
	DefaultMetricsAddr   = ":9464"
)

// DefaultChain is used when no providers are configured.
var DefaultChain = []string{"gemini:gemini-2.5-flash", "gemini:gemini-2.0-flash", "gemini:gemini-2.0-flash-lite"}

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type workspaceDefaults struct{}

func (workspaceDefaults) Domain() string { return "workspace" }

func (workspaceDefaults) ApplyDefaults(cfg *Config) error {
	w := &cfg.Workspace
	if w.Root == "" {
		w.Root = "."
	}
	if w.AppDir == "" {
		w.AppDir = DefaultAppDir
	}
	if w.CloneDir == "" {
		w.CloneDir = DefaultCloneDir
	}
	if w.CloneDepth <= 0 {
		w.CloneDepth = 1
	}
	return nil
}

type buildDefaults struct{}

func (buildDefaults) Domain() string { return "build" }

func (buildDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Build.Command == "" {
		cfg.Build.Command = DefaultBuildCommand
	}
	return nil
}

type analyzerDefaults struct{}

func (analyzerDefaults) Domain() string { return "analyzer" }

func (analyzerDefaults) ApplyDefaults(cfg *Config) error {
	a := &cfg.Analyzer
	if len(a.Extensions) == 0 {
		a.Extensions = append([]string(nil), DefaultSourceExtensions...)
	}
	if len(a.Strategies) == 0 {
		a.Strategies = []LocatorStrategy{LocatorShortestPath}
	}
	for i, s := range a.Strategies {
		parsed, err := ParseLocatorStrategy(string(s))
		if err != nil {
			return err
		}
		a.Strategies[i] = parsed
	}
	return nil
}

type providerDefaults struct{}

func (providerDefaults) Domain() string { return "providers" }

func (providerDefaults) ApplyDefaults(cfg *Config) error {
	p := &cfg.Providers
	if len(p.Chain) == 0 {
		p.Chain = append([]string(nil), DefaultChain...)
	}
	if p.LogWindow <= 0 {
		p.LogWindow = DefaultLogWindow
	}
	if p.RequestTimeout == "" {
		p.RequestTimeout = "120s"
	}
	if p.Retry.Backoff == "" {
		p.Retry.Backoff = RetryBackoffFixed
	} else if m := NormalizeRetryBackoff(string(p.Retry.Backoff)); m != "" {
		p.Retry.Backoff = m
	} else {
		p.Retry.Backoff = RetryBackoffFixed
	}
	if p.Retry.InitialDelay == "" {
		p.Retry.InitialDelay = "2s"
	}
	return nil
}

type repairDefaults struct{}

func (repairDefaults) Domain() string { return "repair" }

func (repairDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Repair.MaxRetries <= 0 {
		cfg.Repair.MaxRetries = DefaultMaxRetries
	}
	if cfg.Repair.DebugLog == "" {
		cfg.Repair.DebugLog = DefaultDebugLog
	}
	return nil
}

type publishDefaults struct{}

func (publishDefaults) Domain() string { return "publish" }

func (publishDefaults) ApplyDefaults(cfg *Config) error {
	p := &cfg.Publish
	if p.BranchPrefix == "" {
		p.BranchPrefix = DefaultBranchPrefix
	}
	if p.CommitMessage == "" {
		p.CommitMessage = DefaultCommitMessage
	}
	if p.AuthorName == "" {
		p.AuthorName = DefaultAuthorName
	}
	if p.AuthorEmail == "" {
		p.AuthorEmail = DefaultAuthorEmail
	}
	if p.Remote == "" {
		p.Remote = DefaultRemote
	}
	return nil
}

type sideDefaults struct{}

func (sideDefaults) Domain() string { return "side" }

func (sideDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	} else {
		cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	}
	if cfg.Mailbox.Path == "" {
		cfg.Mailbox.Path = DefaultMailboxPath
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath()
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Watch.MetricsAddr == "" {
		cfg.Watch.MetricsAddr = DefaultMetricsAddr
	}
	return nil
}

// defaultAppliers lists appliers in execution order.
var defaultAppliers = []DefaultApplier{
	workspaceDefaults{},
	buildDefaults{},
	analyzerDefaults{},
	providerDefaults{},
	repairDefaults{},
	publishDefaults{},
	sideDefaults{},
}

func applyDefaults(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("%s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}

// defaultHistoryPath places the journal in the user cache directory, outside
// any checkout that a publish would stage.
func defaultHistoryPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "selfheal", "history.db")
	}
	return DefaultHistoryPath
}
