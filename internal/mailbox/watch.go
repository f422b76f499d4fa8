package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
)

// DefaultDebounce groups bursts of writes into one notification.
const DefaultDebounce = 300 * time.Millisecond

// Watch calls onChange after the mailbox file is created or written,
// debounced by debounce. Removals do not trigger. It blocks until ctx ends.
func (m *Mailbox) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(m.path)
	if err != nil {
		return fmt.Errorf("failed to resolve mailbox path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create mailbox directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watching the directory survives the file being removed and recreated.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch mailbox directory %s: %w", dir, err)
	}
	slog.Info("Watching mailbox", logfields.Path(abs))

	name := filepath.Base(abs)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			slog.Debug("Mailbox change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Mailbox watcher error", logfields.Error(err))
		}
	}
}
