package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/selfheal/internal/config"
	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// DefaultConfigPath is used when -c is not given. A missing default file
// falls back to built-in defaults.
const DefaultConfigPath = "selfheal.yaml"

// logLevel backs the default logger so the level can follow the loaded
// configuration after flag parsing.
var logLevel = new(slog.LevelVar)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer // defaults to os.Stdout
}

func (g *Global) out() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(g.out(), format, args...)
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"selfheal.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Repair  RepairCmd  `cmd:"" default:"withargs" help:"Run a repair session against the workspace"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Mailbox MailboxCmd `cmd:"" help:"Inspect or modify the deployment error mailbox"`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Serve the mailbox tools over MCP stdio"`
	Watch   WatchCmd   `cmd:"" help:"Run repair sessions on a schedule or when the mailbox changes"`
	History HistoryCmd `cmd:"" help:"List recorded repair sessions"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	logLevel.Set(resolveLogLevel(c.Verbose, os.Getenv(config.EnvLogLevel), ""))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

// resolveLogLevel applies the precedence -v > SELFHEAL_LOG_LEVEL > config.
func resolveLogLevel(verbose bool, env string, configured config.LogLevel) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case strings.TrimSpace(env) != "":
		return config.NormalizeLogLevel(env).SlogLevel()
	case configured != "":
		return configured.SlogLevel()
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads the configuration named by -c and applies its log level.
func (c *CLI) LoadConfig() (*config.Config, error) {
	path := c.Config
	if isDefaultConfigPath(path) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			slog.Debug("No configuration file, using defaults", "path", path)
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "load config").
			WithContext("path", c.Config).
			Build()
	}
	logLevel.Set(resolveLogLevel(c.Verbose, os.Getenv(config.EnvLogLevel), cfg.Logging.Level))
	return cfg, nil
}

func isDefaultConfigPath(path string) bool {
	return filepath.Clean(path) == DefaultConfigPath
}
