package provider

import (
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CleanResponse strips leading and trailing code fences a backend may have
// echoed around the file content, then trims surrounding whitespace.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") && !strings.HasPrefix(s, "~~~") && !strings.HasSuffix(s, "```") {
		return s
	}
	if body, ok := singleFencedBlock(s); ok {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(stripFenceLines(s))
}

// singleFencedBlock returns the body when the whole document is exactly one
// fenced code block.
func singleFencedBlock(s string) (string, bool) {
	src := []byte(s)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	if doc.ChildCount() != 1 {
		return "", false
	}
	block, ok := doc.FirstChild().(*gmast.FencedCodeBlock)
	if !ok {
		return "", false
	}
	// An unterminated fence swallows the rest of the document; accept it
	// only when the closing marker is really present.
	if !hasClosingFence(s) {
		return "", false
	}
	var b strings.Builder
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String(), true
}

func hasClosingFence(s string) bool {
	last := s[strings.LastIndex(s, "\n")+1:]
	last = strings.TrimSpace(last)
	return strings.Count(s, "\n") > 0 && (strings.HasPrefix(last, "```") || strings.HasPrefix(last, "~~~"))
}

// stripFenceLines drops a leading fence line and a trailing fence line.
func stripFenceLines(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		return strings.Trim(s, "`~")
	}
	if len(lines) > 0 && isFenceLine(lines[0]) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && isFenceLine(lines[n-1]) {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

func isFenceLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}
