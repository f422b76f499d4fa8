package analyzer

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
)

// Analyzer applies locator strategies in order.
type Analyzer struct {
	tree     Tree
	locators []Locator
}

// New returns an analyzer for tree using locators in order. With no
// locators the shortest-path heuristic over the default extensions is used.
func New(tree Tree, locators ...Locator) *Analyzer {
	if len(locators) == 0 {
		locators = []Locator{NewShortestPath(config.DefaultSourceExtensions)}
	}
	return &Analyzer{tree: tree, locators: locators}
}

// FromConfig builds an analyzer from the analyzer and workspace sections.
func FromConfig(cfg *config.Config, root string) (*Analyzer, error) {
	exts := cfg.Analyzer.Extensions
	if len(exts) == 0 {
		exts = config.DefaultSourceExtensions
	}
	locators := make([]Locator, 0, len(cfg.Analyzer.Strategies))
	for _, s := range cfg.Analyzer.Strategies {
		switch s {
		case config.LocatorShortestPath:
			locators = append(locators, NewShortestPath(exts))
		case config.LocatorDiagnostic:
			locators = append(locators, NewDiagnostic(exts))
		default:
			return nil, fmt.Errorf("unknown locator strategy %q", s)
		}
	}
	return New(Tree{Root: root, AppDir: cfg.Workspace.AppDir}, locators...), nil
}

// DetectBrokenFile returns the root-relative path of the most likely broken
// file, or false when no allowlisted path in the log exists on disk.
func (a *Analyzer) DetectBrokenFile(rawLog string) (string, bool) {
	clean := StripANSI(rawLog)
	for _, l := range a.locators {
		if path, ok := l.Locate(clean, a.tree); ok {
			slog.Debug("Located broken file", logfields.Strategy(string(l.Name())), logfields.File(path))
			return path, true
		}
	}
	return "", false
}
