// Package build runs the validation command whose exit status drives the
// repair loop.
//
// A Runner never returns a Go error: spawn failures, timeouts and
// cancellations are folded into a non-zero exit code with an explanatory
// note in the captured output, so callers treat every outcome as a build
// result.
package build
