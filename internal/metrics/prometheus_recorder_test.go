package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveBuild(2*time.Second, false)
	pr.ObserveBuild(time.Second, true)
	pr.ObserveBackendAttempt("gemini:gemini-2.5-flash", 300*time.Millisecond, ResultFailed)
	pr.IncFixApplied(".tsx")
	pr.IncFixApplied("")
	pr.ObserveSession("stable", time.Minute)
	pr.IncPublish(ResultSuccess)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"selfheal_builds_total", "selfheal_backend_requests_total", "selfheal_fixes_applied_total", "selfheal_sessions_total", "selfheal_publish_total"} {
		if !names[want] {
			t.Errorf("missing metric %s", want)
		}
	}
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveSession("failed_no_fix", time.Second)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `selfheal_sessions_total{state="failed_no_fix"} 1`) {
		t.Fatalf("unexpected scrape output:\n%s", body)
	}
}

func TestNilAndNoopRecorders(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveBuild(time.Second, true)
	pr.IncPublish(ResultFailed)

	r := OrNoop(nil)
	if _, ok := r.(NoopRecorder); !ok {
		t.Fatalf("expected NoopRecorder, got %T", r)
	}
	r.ObserveSession("stable", time.Second)
}
