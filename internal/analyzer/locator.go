package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/selfheal/internal/config"
)

// Locator is one broken-file detection strategy.
type Locator interface {
	Name() config.LocatorStrategy
	// Locate inspects an already stripped log and returns a root-relative path.
	Locate(log string, tree Tree) (string, bool)
}

// pathCharClass is the set of characters accepted inside a quoted path.
const pathCharClass = `[\w@.~+\-\[\]/\\]`

func extensionAlternation(exts []string) string {
	cleaned := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimPrefix(strings.TrimSpace(e), ".")
		if e != "" {
			cleaned = append(cleaned, regexp.QuoteMeta(e))
		}
	}
	// Longest first so "tsx" wins over "ts".
	sort.Slice(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	return strings.Join(cleaned, "|")
}

func sourcePathPattern(exts []string) *regexp.Regexp {
	return regexp.MustCompile(pathCharClass + `+\.(?:` + extensionAlternation(exts) + `)\b`)
}

// ShortestPath returns the shortest existing path among all allowlisted
// paths mentioned in the log.
type ShortestPath struct {
	pattern *regexp.Regexp
}

// NewShortestPath builds the heuristic for the given extension allowlist.
func NewShortestPath(exts []string) *ShortestPath {
	return &ShortestPath{pattern: sourcePathPattern(exts)}
}

func (s *ShortestPath) Name() config.LocatorStrategy { return config.LocatorShortestPath }

func (s *ShortestPath) Locate(log string, tree Tree) (string, bool) {
	seen := make(map[string]bool)
	var found []string
	for _, m := range s.pattern.FindAllString(log, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		if rel, ok := tree.Resolve(m); ok {
			found = append(found, rel)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Slice(found, func(i, j int) bool {
		if len(found[i]) != len(found[j]) {
			return len(found[i]) < len(found[j])
		}
		return found[i] < found[j]
	})
	return found[0], true
}

// Diagnostic reads compiler-style positions (path:line:col or
// path(line,col)) and returns the first existing file in log order.
type Diagnostic struct {
	pattern *regexp.Regexp
}

// NewDiagnostic builds the diagnostic locator for the given extension allowlist.
func NewDiagnostic(exts []string) *Diagnostic {
	alt := extensionAlternation(exts)
	p := `(` + pathCharClass + `+\.(?:` + alt + `))(?::(\d+)(?::(\d+))?|\((\d+),(\d+)\))`
	return &Diagnostic{pattern: regexp.MustCompile(p)}
}

func (d *Diagnostic) Name() config.LocatorStrategy { return config.LocatorDiagnostic }

func (d *Diagnostic) Locate(log string, tree Tree) (string, bool) {
	for _, m := range d.pattern.FindAllStringSubmatch(log, -1) {
		if rel, ok := tree.Resolve(m[1]); ok {
			return rel, true
		}
	}
	return "", false
}
