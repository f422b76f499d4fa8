package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/eventstore"
	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// runCLI parses args against a fresh CLI and runs the selected command.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	g := &Global{Stdout: &out}
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("selfheal"),
		kong.Vars{"version": "test"},
		kong.Bind(g),
		kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(g, cli)
	return out.String(), err
}

type testConfig struct {
	Root       string
	Command    string
	History    string
	MaxRetries int
}

func writeConfig(t *testing.T, dir string, tc testConfig) string {
	t.Helper()
	if tc.MaxRetries == 0 {
		tc.MaxRetries = 1
	}
	history := "history:\n  enabled: false\n"
	if tc.History != "" {
		history = fmt.Sprintf("history:\n  enabled: true\n  path: %q\n", tc.History)
	}
	body := fmt.Sprintf(`version: "1"
workspace:
  root: %q
build:
  command: %q
providers:
  chain: ["ollama:llama3"]
repair:
  max_retries: %d
mailbox:
  path: %q
%s`, tc.Root, tc.Command, tc.MaxRetries, filepath.Join(dir, "mailbox.log"), history)
	path := filepath.Join(dir, "selfheal-test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestResolveLogLevel(t *testing.T) {
	tests := []struct {
		name       string
		verbose    bool
		env        string
		configured config.LogLevel
		want       slog.Level
	}{
		{"default", false, "", "", slog.LevelInfo},
		{"config", false, "", config.LogLevelWarn, slog.LevelWarn},
		{"env beats config", false, "error", config.LogLevelWarn, slog.LevelError},
		{"verbose beats env", true, "error", config.LogLevelWarn, slog.LevelDebug},
		{"unknown env falls back to info", false, "loud", config.LogLevelDebug, slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLogLevel(tt.verbose, tt.env, tt.configured))
		})
	}
}

func TestLoadConfig_MissingDefaultUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cli := &CLI{Config: DefaultConfigPath}
	cfg, err := cli.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBuildCommand, cfg.Build.Command)
	assert.Equal(t, config.DefaultMaxRetries, cfg.Repair.MaxRetries)
}

func TestLoadConfig_MissingExplicitPath(t *testing.T) {
	cli := &CLI{Config: filepath.Join(t.TempDir(), "absent.yaml")}
	_, err := cli.LoadConfig()
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInit_WritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, "init", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")

	path := filepath.Join(dir, DefaultConfigPath)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "broken-app", cfg.Workspace.AppDir)

	_, err = runCLI(t, "init", "-o", dir)
	require.Error(t, err, "existing file needs --force")
	_, err = runCLI(t, "init", "-o", dir, "--force")
	require.NoError(t, err)
}

func TestMailbox_PostReadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared", "errors.log")

	out, err := runCLI(t, "mailbox", "-p", path, "read")
	require.NoError(t, err)
	assert.Contains(t, out, "No error logs found")

	_, err = runCLI(t, "mailbox", "-p", path, "post", "Module", "not", "found")
	require.NoError(t, err)

	out, err = runCLI(t, "mailbox", "-p", path, "read")
	require.NoError(t, err)
	assert.Contains(t, out, "LATEST ERROR LOGS:\nModule not found")

	out, err = runCLI(t, "mailbox", "-p", path, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Logs cleared successfully.")

	out, err = runCLI(t, "mailbox", "-p", path, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "No logs to clear.")
}

func TestRepair_PassingBuildNeedsNoFix(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, testConfig{Root: dir, Command: "true"})

	out, err := runCLI(t, "-c", cfgPath, "repair", "--no-publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Build passed on the first check, no repair was needed")
}

func TestRepair_UnlocatableFailureSavesLog(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, testConfig{Root: dir, Command: "echo something broke; exit 3"})

	out, err := runCLI(t, "-c", cfgPath, "repair")
	require.Error(t, err)
	assert.Contains(t, out, "Could not identify the broken file")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRepair))

	data, readErr := os.ReadFile(filepath.Join(dir, config.DefaultDebugLog))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "something broke")
}

func TestRepair_SetupCommandFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Workspace.Root = dir
	cfg.Workspace.SetupCommand = "exit 4"
	cfg.Build.Command = "true"
	cfg.Providers.Chain = []string{"ollama:llama3"}
	cfg.History.Enabled = false

	err := RunRepair(t.Context(), &Global{Stdout: &bytes.Buffer{}}, cfg, false, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
}

func TestRepair_CloneRequiresRepoURL(t *testing.T) {
	cfg := config.Default()
	cfg.Credentials.RepoURL = ""
	err := RunRepair(t.Context(), &Global{}, cfg, true, false)
	require.Error(t, err)
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryConfig, classified.Category())
	assert.Contains(t, classified.Hint(), config.EnvRepoURL)
}

func TestHistory_ListsJournaledSessions(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.db")
	cfgPath := writeConfig(t, dir, testConfig{Root: dir, Command: "true", History: historyPath})

	_, err := runCLI(t, "-c", cfgPath, "repair", "--no-publish")
	require.NoError(t, err)

	out, err := runCLI(t, "-c", cfgPath, "history", "--json")
	require.NoError(t, err)
	var sessions []eventstore.SessionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "stable", sessions[0].Status)
	assert.Equal(t, "manual", sessions[0].Trigger)
	assert.Equal(t, 1, sessions[0].BuildRuns)

	out, err = runCLI(t, "-c", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, sessions[0].SessionID)
}

func TestHistory_Disabled(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, testConfig{Root: dir, Command: "true"})
	_, err := runCLI(t, "-c", cfgPath, "history")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestRunWatch_RejectsInvalidInterval(t *testing.T) {
	cfg := config.Default()
	cfg.Watch.Interval = "soon"
	err := RunWatch(t.Context(), cfg)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}
