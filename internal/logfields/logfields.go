package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeySessionID  = "session_id"
	KeyAttempt    = "attempt"
	KeyState      = "state"
	KeyStage      = "stage"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyDir        = "dir"
	KeyFile       = "file"
	KeyPath       = "path"
	KeyProvider   = "provider"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyRemote     = "remote"
	KeyURL        = "url"
	KeyName       = "name"
	KeyStrategy   = "strategy"
	KeyDurationMS = "duration_ms"
	KeyBytes      = "bytes"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Dir(d string) slog.Attr          { return slog.String(KeyDir, d) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Provider(p string) slog.Attr     { return slog.String(KeyProvider, p) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func Remote(r string) slog.Attr       { return slog.String(KeyRemote, r) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Strategy(s string) slog.Attr     { return slog.String(KeyStrategy, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
