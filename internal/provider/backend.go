package provider

import (
	"context"
	"fmt"
	"strings"
)

// Request is one fix request.
type Request struct {
	ErrorLog   string // already truncated to the configured window
	TargetFile string // path relative to the session root
	Content    string // full current content of TargetFile
}

// Backend is a single code-generation service.
type Backend interface {
	// Name returns the kind:model identifier used in logs and metrics.
	Name() string
	// AttemptFix returns the raw backend answer for req.
	AttemptFix(ctx context.Context, req Request) (string, error)
}

const systemPrompt = "You are an autonomous build repair agent. " +
	"You receive a failing build log and the full content of the source file that caused it. " +
	"Reply with the complete corrected file content only: no explanations, no markdown, no code fences."

// UserPrompt renders the per-request instruction sent to every backend.
func UserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("The build failed with this error log (most recent output last):\n")
	b.WriteString(req.ErrorLog)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "File: %s\n", req.TargetFile)
	b.WriteString("Current content:\n")
	b.WriteString(req.Content)
	b.WriteString("\n\nReturn ONLY the full fixed file content for ")
	b.WriteString(req.TargetFile)
	b.WriteString(".")
	return b.String()
}

// TailRunes returns the trailing n runes of s.
func TailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
