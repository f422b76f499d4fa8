// Package metrics provides observability hooks for repair sessions.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so call sites never check for nil. PrometheusRecorder is the
// real implementation, registered on a caller-supplied registry and exposed
// by the watch daemon through HTTPHandler.
//
// Signals:
//
//   - build invocations: duration histogram and pass/fail counter
//   - backend attempts: per provider outcome counter and latency histogram
//   - repair attempts: fixes applied, by file extension
//   - sessions: terminal state counter and duration histogram
//   - publish: outcome counter
package metrics
