package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// Patcher reads and writes files under the session root.
type Patcher struct {
	root string
}

// NewPatcher returns a patcher rooted at root.
func NewPatcher(root string) *Patcher {
	return &Patcher{root: root}
}

// Root returns the session root.
func (p *Patcher) Root() string { return p.root }

// Abs resolves rel against the root, rejecting paths that escape it either
// textually or through a symlink.
func (p *Patcher) Abs(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", ferrors.FileSystemError("path must be relative to the workspace root").WithContext("path", rel).Build()
	}
	joined := filepath.Join(p.root, filepath.FromSlash(rel))
	if !isUnder(p.root, joined) || !Contains(p.root, joined) {
		return "", ferrors.FileSystemError("path escapes the workspace root").WithContext("path", rel).Build()
	}
	return joined, nil
}

// Contains reports whether path stays under root once symlinks in both are
// resolved. Components of path that do not exist yet are taken literally;
// a dangling symlink is never contained.
func Contains(root, path string) bool {
	realRoot, err := resolveExisting(root)
	if err != nil {
		return false
	}
	realPath, err := resolveExisting(path)
	if err != nil {
		return false
	}
	return isUnder(realRoot, realPath)
}

func isUnder(root, path string) bool {
	back, err := filepath.Rel(root, path)
	return err == nil && back != ".." && !strings.HasPrefix(back, ".."+string(filepath.Separator))
}

// resolveExisting evaluates symlinks in the longest existing prefix of path.
func resolveExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var rest []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("dangling symlink %s: %w", cur, err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// Read returns the content of rel.
func (p *Patcher) Read(rel string) (string, error) {
	abs, err := p.Abs(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read file").WithContext("path", rel).Build()
	}
	return string(data), nil
}

// Write overwrites rel with content, keeping the file's permission bits.
func (p *Patcher) Write(rel, content string) error {
	abs, err := p.Abs(rel)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(abs); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.WriteFile(abs, []byte(content), mode); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write file").WithContext("path", rel).Build()
	}
	return nil
}

// WriteArtifact writes a debug artifact, creating parent directories.
func (p *Patcher) WriteArtifact(rel, content string) (string, error) {
	abs, err := p.Abs(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o600); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write artifact").WithContext("path", rel).Build()
	}
	return abs, nil
}

// MatchTrailingNewline appends a final newline to fixed when original ended
// with one, since backend answers arrive trimmed.
func MatchTrailingNewline(original, fixed string) string {
	if strings.HasSuffix(original, "\n") && !strings.HasSuffix(fixed, "\n") {
		return fixed + "\n"
	}
	return fixed
}
