package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
)

// Manager prepares clone destinations.
type Manager struct {
	baseDir   string
	dir       string
	ephemeral bool // timestamped directory removed by Cleanup
}

// NewManager returns a manager for a fixed clone directory. Prepare removes
// any previous content so every clone starts fresh.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// NewEphemeralManager returns a manager that creates a timestamped directory
// under baseDir (os.TempDir when empty) and removes it on Cleanup.
func NewEphemeralManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, ephemeral: true}
}

// Prepare makes sure the destination does not exist and its parent does.
// The clone itself creates the destination.
func (m *Manager) Prepare() error {
	if m.ephemeral {
		parent := filepath.Join(m.baseDir, fmt.Sprintf("selfheal-%s", time.Now().Format("20060102-150405.000000")))
		if err := os.MkdirAll(parent, 0o750); err != nil {
			return fmt.Errorf("failed to create workspace directory: %w", err)
		}
		m.dir = filepath.Join(parent, "repo")
		slog.Info("Created ephemeral workspace", logfields.Path(parent))
		return nil
	}

	if m.dir == "" {
		return fmt.Errorf("workspace directory not set")
	}
	if _, err := os.Stat(m.dir); err == nil {
		slog.Info("Removing previous workspace", logfields.Path(m.dir))
		if err := os.RemoveAll(m.dir); err != nil {
			return fmt.Errorf("failed to reset workspace: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(m.dir), 0o750); err != nil {
		return fmt.Errorf("failed to create workspace parent: %w", err)
	}
	return nil
}

// Path returns the clone destination (set after Prepare for ephemeral managers).
func (m *Manager) Path() string {
	return m.dir
}

// Cleanup removes an ephemeral workspace. Fixed directories are kept so the
// repaired checkout stays inspectable.
func (m *Manager) Cleanup() error {
	if !m.ephemeral || m.dir == "" {
		return nil
	}
	parent := filepath.Dir(m.dir)
	if err := os.RemoveAll(parent); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up workspace", logfields.Path(parent))
	m.dir = ""
	return nil
}
