package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the only configuration version this binary understands.
const CurrentVersion = "1"

// Config is the complete selfheal configuration, passed explicitly to every
// component at construction time.
type Config struct {
	Version   string          `yaml:"version"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Build     BuildConfig     `yaml:"build"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Providers ProvidersConfig `yaml:"providers"`
	Repair    RepairConfig    `yaml:"repair"`
	Publish   PublishConfig   `yaml:"publish"`
	Mailbox   MailboxConfig   `yaml:"mailbox,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Watch     WatchConfig     `yaml:"watch,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`

	// Credentials are never read from YAML; see LoadCredentials.
	Credentials Credentials `yaml:"-"`
}

// LoggingConfig controls the default log level (overridable by -v and SELFHEAL_LOG_LEVEL).
type LoggingConfig struct {
	Level LogLevel `yaml:"level,omitempty"`
}

// WorkspaceConfig describes where the session operates.
type WorkspaceConfig struct {
	Root         string `yaml:"root"`                    // session root (repository checkout)
	AppDir       string `yaml:"app_dir"`                 // application subdirectory, relative to root
	Clone        bool   `yaml:"clone,omitempty"`         // clone REPO_URL into CloneDir before the session
	CloneDir     string `yaml:"clone_dir,omitempty"`     // destination for Clone; becomes the root
	CloneDepth   int    `yaml:"clone_depth,omitempty"`   // shallow clone depth
	SetupCommand string `yaml:"setup_command,omitempty"` // optional preparation command (e.g. "npm install")
}

// BuildConfig configures the validation command.
type BuildConfig struct {
	Command string `yaml:"command"`
	Timeout string `yaml:"timeout,omitempty"` // duration string, empty means no deadline
}

// TimeoutDuration parses Timeout, returning 0 for empty or invalid values.
func (b BuildConfig) TimeoutDuration() time.Duration {
	return parseDuration(b.Timeout)
}

// AnalyzerConfig configures failure log analysis.
type AnalyzerConfig struct {
	Extensions []string          `yaml:"extensions,omitempty"`
	Strategies []LocatorStrategy `yaml:"strategies,omitempty"`
}

// ProvidersConfig configures the fix provider chain.
type ProvidersConfig struct {
	Chain          []string        `yaml:"chain"`                     // ordered backend identifiers, kind:model
	LogWindow      int             `yaml:"log_window,omitempty"`      // trailing runes of the build log sent per request
	RequestTimeout string          `yaml:"request_timeout,omitempty"` // per-request deadline
	Retry          RetryConfig     `yaml:"retry,omitempty"`           // pause between backends
	Endpoints      EndpointsConfig `yaml:"endpoints,omitempty"`
	MaxTokens      int             `yaml:"max_tokens,omitempty"`
}

// RequestTimeoutDuration parses RequestTimeout, returning 0 for empty or invalid values.
func (p ProvidersConfig) RequestTimeoutDuration() time.Duration {
	return parseDuration(p.RequestTimeout)
}

// EndpointsConfig overrides backend base URLs.
type EndpointsConfig struct {
	Gemini    string `yaml:"gemini,omitempty"`
	OpenAI    string `yaml:"openai,omitempty"`
	Ollama    string `yaml:"ollama,omitempty"`
	Anthropic string `yaml:"anthropic,omitempty"`
}

// RepairConfig configures the repair loop.
type RepairConfig struct {
	MaxRetries          int    `yaml:"max_retries"`
	DebugLog            string `yaml:"debug_log,omitempty"` // relative to the workspace root
	RejectRepeatedFixes *bool  `yaml:"reject_repeated_fixes,omitempty"`
}

// RejectRepeated reports the effective oscillation guard setting (default true).
func (r RepairConfig) RejectRepeated() bool {
	return r.RejectRepeatedFixes == nil || *r.RejectRepeatedFixes
}

// PublishConfig configures the publish transaction.
type PublishConfig struct {
	Enabled       *bool  `yaml:"enabled,omitempty"`
	BranchPrefix  string `yaml:"branch_prefix,omitempty"`
	CommitMessage string `yaml:"commit_message,omitempty"`
	AuthorName    string `yaml:"author_name,omitempty"`
	AuthorEmail   string `yaml:"author_email,omitempty"`
	Remote        string `yaml:"remote,omitempty"`
	FailOnError   bool   `yaml:"fail_on_error,omitempty"`
}

// IsEnabled reports the effective publish switch (default true).
func (p PublishConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// MailboxConfig configures the shared error log mailbox.
type MailboxConfig struct {
	Path           string `yaml:"path,omitempty"`
	ClearOnSuccess bool   `yaml:"clear_on_success,omitempty"`
}

// HistoryConfig configures the session journal.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// NotifyConfig configures NATS session notifications.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig configures the watch daemon.
type WatchConfig struct {
	Interval       string `yaml:"interval,omitempty"` // empty disables scheduled sessions
	TriggerMailbox bool   `yaml:"trigger_on_mailbox,omitempty"`
	MetricsAddr    string `yaml:"metrics_addr,omitempty"`
}

// IntervalDuration parses Interval, returning 0 for empty or invalid values.
func (w WatchConfig) IntervalDuration() time.Duration {
	return parseDuration(w.Interval)
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// Load reads a configuration file. An empty path yields the defaults. In
// both cases .env files and credentials are loaded from the environment.
func Load(configPath string) (*Config, error) {
	if loaded, err := loadEnvFile(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	} else {
		slog.Debug("Loaded environment variables", "path", loaded)
	}

	var cfg Config
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		if cfg.Version != "" && cfg.Version != CurrentVersion {
			return nil, fmt.Errorf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)
		}
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	cfg.Credentials = LoadCredentials()

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration populated only with defaults and the
// current environment credentials. It is not validated.
func Default() *Config {
	var cfg Config
	_ = applyDefaults(&cfg)
	cfg.Credentials = LoadCredentials()
	return &cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	enabled := true
	example := Config{
		Version: CurrentVersion,
		Logging: LoggingConfig{Level: LogLevelInfo},
		Workspace: WorkspaceConfig{
			Root:         ".",
			AppDir:       "broken-app",
			CloneDir:     "project_code",
			CloneDepth:   1,
			SetupCommand: "",
		},
		Build: BuildConfig{Command: "npm run build", Timeout: "10m"},
		Analyzer: AnalyzerConfig{
			Strategies: []LocatorStrategy{LocatorDiagnostic, LocatorShortestPath},
		},
		Providers: ProvidersConfig{
			Chain:          []string{"gemini:gemini-2.5-flash", "gemini:gemini-2.0-flash", "gemini:gemini-2.0-flash-lite"},
			LogWindow:      2000,
			RequestTimeout: "120s",
			Retry:          RetryConfig{Backoff: RetryBackoffFixed, InitialDelay: "2s"},
		},
		Repair: RepairConfig{MaxRetries: 5, DebugLog: "build_failure.log", RejectRepeatedFixes: &enabled},
		Publish: PublishConfig{
			Enabled:       &enabled,
			BranchPrefix:  "auto-fix",
			CommitMessage: DefaultCommitMessage,
			AuthorName:    DefaultAuthorName,
			AuthorEmail:   DefaultAuthorEmail,
			Remote:        "origin",
		},
		Mailbox: MailboxConfig{Path: DefaultMailboxPath},
		History: HistoryConfig{Enabled: true},
		Notify:  NotifyConfig{Enabled: false, URL: "nats://127.0.0.1:4222", Subject: "selfheal.sessions"},
		Watch:   WatchConfig{Interval: "15m", TriggerMailbox: true, MetricsAddr: ":9464"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := "# selfheal configuration\n# Credentials are read from the environment (.env supported):\n" +
		"#   GEMINI_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY, GITHUB_TOKEN, REPO_URL, GIT_USERNAME\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func parseDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
