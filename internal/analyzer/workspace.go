package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/selfheal/internal/workspace"
)

// Tree resolves candidate paths quoted in a build log against the session
// root and its application subdirectory.
type Tree struct {
	Root   string
	AppDir string // relative to Root
}

// Resolve checks candidate under the application subdirectory first, then
// under the root. It returns the existing regular file as a clean path
// relative to Root. Candidates resolving outside Root, including through a
// symlink, are rejected.
func (t Tree) Resolve(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	root, err := filepath.Abs(t.Root)
	if err != nil {
		return "", false
	}

	var tries []string
	if filepath.IsAbs(candidate) {
		tries = []string{candidate}
	} else {
		if t.AppDir != "" {
			tries = append(tries, filepath.Join(root, t.AppDir, candidate))
		}
		tries = append(tries, filepath.Join(root, candidate))
	}

	for _, abs := range tries {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		fi, err := os.Stat(abs)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if !workspace.Contains(root, abs) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}
