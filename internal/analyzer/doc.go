// Package analyzer locates the source file most likely responsible for a
// failed build by inspecting the build's raw output.
//
// Output is first stripped of terminal escape sequences. Configured Locator
// strategies are then tried in order; the first one that names an existing
// regular file inside the session root wins. The shortest-path strategy is a
// heuristic: among all existing files mentioned in the log it picks the
// shortest path, since longer matches are usually dependency or build
// artifact paths quoted incidentally in diagnostics.
package analyzer
