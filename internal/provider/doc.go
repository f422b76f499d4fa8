// Package provider obtains replacement file content from code-generation
// backends.
//
// Every backend implements Backend. A Chain tries backends in their
// configured order: a failing backend is logged, followed by a short pause,
// and the next backend is tried. The first non-empty answer wins after code
// fences and surrounding whitespace are removed. The chain never touches the
// workspace; applying a fix is the caller's decision.
package provider
