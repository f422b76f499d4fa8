package analyzer

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// StripANSI removes terminal escape sequences (SGR colors, cursor movement,
// OSC hyperlinks, CI timestamp markers) and normalizes carriage returns.
func StripANSI(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
