package config

import "git.home.luguber.info/inful/selfheal/internal/foundation/normalization"

// LocatorStrategy names a broken-file locator implementation.
type LocatorStrategy string

const (
	LocatorShortestPath LocatorStrategy = "shortest-path"
	LocatorDiagnostic   LocatorStrategy = "diagnostic"
)

var locatorNormalizer = normalization.NewNormalizer("locator strategy", map[string]LocatorStrategy{
	"shortest-path": LocatorShortestPath,
	"shortest_path": LocatorShortestPath,
	"shortest":      LocatorShortestPath,
	"diagnostic":    LocatorDiagnostic,
}, "")

// ParseLocatorStrategy validates and canonicalizes a strategy name.
func ParseLocatorStrategy(raw string) (LocatorStrategy, error) {
	return locatorNormalizer.Parse(raw)
}

// DefaultSourceExtensions is the allowlist of source file extensions the
// analyzer recognizes in build output.
var DefaultSourceExtensions = []string{
	"js", "jsx", "ts", "tsx", "mjs", "cjs", "vue", "svelte",
	"html", "css", "scss", "sass", "less", "json",
}
