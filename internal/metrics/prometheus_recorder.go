package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "selfheal"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration   prom.Histogram
	buildResults    *prom.CounterVec
	backendDuration *prom.HistogramVec
	backendResults  *prom.CounterVec
	fixesApplied    *prom.CounterVec
	sessionDuration prom.Histogram
	sessionStates   *prom.CounterVec
	publishResults  *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of build command invocations",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		buildResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Build command invocations by result",
		}, []string{"result"}),
		backendDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of fix requests per backend",
			Buckets:   prom.DefBuckets,
		}, []string{"provider"}),
		backendResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Fix requests per backend by result",
		}, []string{"provider", "result"}),
		fixesApplied: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_applied_total",
			Help:      "Fixes written to disk by file extension",
		}, []string{"ext"}),
		sessionDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Total repair session duration",
			Buckets:   []float64{5, 30, 60, 300, 600, 1800, 3600},
		}),
		sessionStates: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Repair sessions by terminal state",
		}, []string{"state"}),
		publishResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish transactions by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildResults, pr.backendDuration, pr.backendResults,
		pr.fixesApplied, pr.sessionDuration, pr.sessionStates, pr.publishResults)
	return pr
}

func (p *PrometheusRecorder) ObserveBuild(d time.Duration, passed bool) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
	res := ResultFailed
	if passed {
		res = ResultSuccess
	}
	p.buildResults.WithLabelValues(string(res)).Inc()
}

func (p *PrometheusRecorder) ObserveBackendAttempt(provider string, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.backendDuration.WithLabelValues(provider).Observe(d.Seconds())
	p.backendResults.WithLabelValues(provider, string(result)).Inc()
}

func (p *PrometheusRecorder) IncFixApplied(ext string) {
	if p == nil {
		return
	}
	if ext == "" {
		ext = "none"
	}
	p.fixesApplied.WithLabelValues(ext).Inc()
}

func (p *PrometheusRecorder) ObserveSession(state string, d time.Duration) {
	if p == nil {
		return
	}
	p.sessionDuration.Observe(d.Seconds())
	p.sessionStates.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) IncPublish(result ResultLabel) {
	if p == nil {
		return
	}
	p.publishResults.WithLabelValues(string(result)).Inc()
}
