package metrics

import "time"

// ResultLabel enumerates outcome categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for repair sessions.
type Recorder interface {
	ObserveBuild(d time.Duration, passed bool)
	ObserveBackendAttempt(provider string, d time.Duration, result ResultLabel)
	IncFixApplied(ext string)
	ObserveSession(state string, d time.Duration)
	IncPublish(result ResultLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuild(time.Duration, bool)                            {}
func (NoopRecorder) ObserveBackendAttempt(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncFixApplied(string)                                      {}
func (NoopRecorder) ObserveSession(string, time.Duration)                      {}
func (NoopRecorder) IncPublish(ResultLabel)                                    {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
