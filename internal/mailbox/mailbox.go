// Package mailbox manages the shared deployment error log that deployment
// tooling writes failures into and repair sessions consume.
package mailbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// Mailbox is a single log file on disk.
type Mailbox struct {
	path string
}

// New returns a mailbox backed by path.
func New(path string) *Mailbox {
	return &Mailbox{path: path}
}

// Path returns the mailbox file path.
func (m *Mailbox) Path() string { return m.path }

// Read returns the mailbox content. ok is false when the file does not exist.
func (m *Mailbox) Read() (content string, ok bool, err error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read mailbox").
			WithContext("path", m.path).Build()
	}
	return string(data), true, nil
}

// Clear removes the mailbox file. It reports whether there was anything to remove.
func (m *Mailbox) Clear() (bool, error) {
	err := os.Remove(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to clear mailbox").
			WithContext("path", m.path).Build()
	}
	return true, nil
}

// Post appends an entry, creating the file and its directory as needed.
func (m *Mailbox) Post(entry string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create mailbox directory").
			WithContext("path", m.path).Build()
	}
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to open mailbox").
			WithContext("path", m.path).Build()
	}
	defer f.Close()
	if !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}
	if _, err := f.WriteString(entry); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write mailbox").
			WithContext("path", m.path).Build()
	}
	return nil
}

// ReadReport renders the mailbox for tool consumers.
func (m *Mailbox) ReadReport() string {
	content, ok, err := m.Read()
	switch {
	case err != nil:
		return fmt.Sprintf("Failed to read logs: %v", err)
	case !ok:
		return fmt.Sprintf("No error logs found in %s. System appears healthy.", m.path)
	default:
		return "LATEST ERROR LOGS:\n" + content
	}
}

// ClearReport clears the mailbox and renders the outcome for tool consumers.
func (m *Mailbox) ClearReport() string {
	removed, err := m.Clear()
	switch {
	case err != nil:
		return fmt.Sprintf("Failed to clear logs: %v", err)
	case removed:
		return "Logs cleared successfully."
	default:
		return "No logs to clear."
	}
}
