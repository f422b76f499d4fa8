package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
)

// Exit codes synthesized for runs that never produced a real status.
const (
	ExitSpawnFailure = 127
	ExitTimeout      = 124
)

// Result is the immutable outcome of one build invocation.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Succeeded reports whether the build passed.
func (r Result) Succeeded() bool { return r.ExitCode == 0 }

// Runner executes a build command.
type Runner interface {
	Run(ctx context.Context, command string) Result
}

// ShellRunner runs commands through `sh -c` inside a workspace.
type ShellRunner struct {
	Root    string        // session root
	AppDir  string        // application subdirectory, absolute or relative to Root
	Timeout time.Duration // 0 means the caller's context alone bounds the run
	Shell   string        // defaults to "sh"
}

// NewShellRunner returns a runner for the given workspace.
func NewShellRunner(root, appDir string, timeout time.Duration) *ShellRunner {
	return &ShellRunner{Root: root, AppDir: appDir, Timeout: timeout}
}

var packageManagerBuild = regexp.MustCompile(`(?:^|[\s;&|(])(?:npm|yarn|pnpm|bun)\b[^;&|]*\bbuild\b`)

// IsPackageManagerBuild reports whether command is an npm/yarn/pnpm/bun build invocation.
func IsPackageManagerBuild(command string) bool {
	return packageManagerBuild.MatchString(command)
}

// ResolveDir picks the working directory for command: the application
// subdirectory for package-manager builds when it exists, otherwise the root.
func (r *ShellRunner) ResolveDir(command string) string {
	if IsPackageManagerBuild(command) && r.AppDir != "" {
		app := r.AppDir
		if !filepath.IsAbs(app) {
			app = filepath.Join(r.Root, app)
		}
		if fi, err := os.Stat(app); err == nil && fi.IsDir() {
			return app
		}
	}
	return r.Root
}

// Run executes command and captures stdout followed by stderr.
func (r *ShellRunner) Run(ctx context.Context, command string) Result {
	dir := r.ResolveDir(command)
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	// #nosec G204 -- the build command is operator configuration
	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running build command", logfields.Command(command), logfields.Dir(dir))
	start := time.Now()
	err := cmd.Run()
	res := Result{
		Output:   stdout.String() + stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		res.ExitCode = 0
	case runCtx.Err() != nil && ctx.Err() == nil:
		res.ExitCode = ExitTimeout
		res.Output += fmt.Sprintf("\n[selfheal] build command timed out after %s\n", r.Timeout)
	case ctx.Err() != nil:
		res.ExitCode = exitCodeOf(err, 130)
		res.Output += fmt.Sprintf("\n[selfheal] build command canceled: %v\n", ctx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if res.ExitCode < 0 {
				res.ExitCode = 1
			}
		} else {
			res.ExitCode = ExitSpawnFailure
			res.Output += err.Error()
		}
	}

	slog.Debug("Build command finished",
		logfields.ExitCode(res.ExitCode),
		logfields.DurationMS(float64(res.Duration.Milliseconds())),
		logfields.Bytes(len(res.Output)))
	return res
}

func exitCodeOf(err error, fallback int) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return fallback
}
