package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/prabhakardwivedi/corpsite/internal/content"
	"github.com/prabhakardwivedi/corpsite/internal/session"
	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/version"
)

// the collector satisfies every observer interface it is wired into
var (
	_ session.Metrics = (*ServerMetrics)(nil)
	_ store.Observer  = (*ServerMetrics)(nil)
	_ content.Metrics = (*ServerMetrics)(nil)
)

// New

func TestNew_RegistryPopulated(t *testing.T) {
	m := New()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	// Non-Vec metrics appear immediately
	for _, name := range []string{
		"http_inflight_requests",
		"http_panic_total",
		"profiling_active",
		"session_guard_redirects_total",
		"session_ws_connections",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("go collector metrics missing")
	}
}

func TestHandler_ContentType(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	ct := rec.Header().Get("Content-Type")
	if !strings.Contains(ct, "text/plain") && !strings.Contains(ct, "openmetrics") {
		t.Fatalf("Content-Type = %q, want text/plain or openmetrics", ct)
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	m1 := New()
	m2 := New()

	m1.IncHttpPanic()
	m1.IncHttpPanic()

	if v := counterValue(t, m1.reg, "http_panic_total"); v != 2 {
		t.Fatalf("m1 panic count = %f, want 2", v)
	}
	if v := counterValue(t, m2.reg, "http_panic_total"); v != 0 {
		t.Fatalf("m2 panic count = %f, want 0", v)
	}
}

// build info

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()
	dirty := true
	m.SetBuildInfoFromVersion("corpsite", "server", version.Info{
		Version:    "1.2.3",
		Commit:     "abc123",
		CommitDate: "2026-01-01",
		BuildDate:  "2026-01-01T00:00:00Z",
		GoVersion:  "go1.25.1",
		VCSDirty:   &dirty,
	})

	labels := labelsOf(t, m.reg, "build_info")
	for k, want := range map[string]string{
		"app":        "corpsite",
		"component":  "server",
		"version":    "1.2.3",
		"commit":     "abc123",
		"go_version": "go1.25.1",
		"vcs_dirty":  "true",
	} {
		if got := labels[k]; got != want {
			t.Errorf("build_info label %q = %q, want %q", k, got, want)
		}
	}
}

func TestSetBuildInfoFromVersion_NilVCSDirty(t *testing.T) {
	m := New()
	m.SetBuildInfoFromVersion("app", "comp", version.Info{Version: "dev"})
	if got := labelsOf(t, m.reg, "build_info")["vcs_dirty"]; got != "unknown" {
		t.Fatalf("vcs_dirty = %q, want unknown", got)
	}
}

// rate limiting

func TestRateLimitCountersByLimiter(t *testing.T) {
	m := New()
	m.IncRateLimitDenied("contact")
	m.IncRateLimitDenied("contact")
	m.IncRateLimitDenied("login")
	m.IncRateLimitFirstDenied("contact")

	if v := vecValue(t, m.reg, "http_requests_rate_limited_total", "limiter", "contact"); v != 2 {
		t.Fatalf("contact denied = %f, want 2", v)
	}
	if v := vecValue(t, m.reg, "http_requests_rate_limited_total", "limiter", "login"); v != 1 {
		t.Fatalf("login denied = %f, want 1", v)
	}
	if v := vecValue(t, m.reg, "http_rate_limited_clients_total", "limiter", "contact"); v != 1 {
		t.Fatalf("contact first denied = %f, want 1", v)
	}
}

func TestSetProfilingActive(t *testing.T) {
	m := New()
	m.SetProfilingActive(true)
	if v := gaugeValue(t, m.reg, "profiling_active"); v != 1 {
		t.Fatalf("profiling_active = %f, want 1", v)
	}
	m.SetProfilingActive(false)
	if v := gaugeValue(t, m.reg, "profiling_active"); v != 0 {
		t.Fatalf("profiling_active = %f, want 0", v)
	}
}

// session

func TestSessionMetrics(t *testing.T) {
	m := New()
	m.IncGuardTransition(session.Authorized.String())
	m.IncGuardTransition(session.Unauthorized.String())
	m.IncGuardTransition(session.Unauthorized.String())
	m.IncGuardRedirect()
	m.IncSessionCheck("ok")

	if v := vecValue(t, m.reg, "session_guard_transitions_total", "state", session.Unauthorized.String()); v != 2 {
		t.Fatalf("unauthorized transitions = %f, want 2", v)
	}
	if v := counterValue(t, m.reg, "session_guard_redirects_total"); v != 1 {
		t.Fatalf("redirects = %f, want 1", v)
	}
	if v := vecValue(t, m.reg, "session_checks_total", "result", "ok"); v != 1 {
		t.Fatalf("checks = %f, want 1", v)
	}

	m.WSConnected()
	m.WSConnected()
	m.WSDisconnected()
	if v := gaugeValue(t, m.reg, "session_ws_connections"); v != 1 {
		t.Fatalf("ws connections = %f, want 1", v)
	}
}

// store

func TestObserveStoreOp_ClassifiesResults(t *testing.T) {
	m := New()
	m.ObserveStoreOp("leads", "insert", nil, 3*time.Millisecond)
	m.ObserveStoreOp("leads", "update", store.ErrNotFound, time.Millisecond)
	m.ObserveStoreOp("ventures", "insert", &store.DuplicateKeyError{Table: "ventures"}, time.Millisecond)
	m.ObserveStoreOp("ventures", "select", errors.New("conn reset"), time.Millisecond)

	for _, want := range []string{"ok", "not_found", "duplicate", "error"} {
		if v := vecValue(t, m.reg, "store_operations_total", "result", want); v != 1 {
			t.Errorf("result %s = %f, want 1", want, v)
		}
	}
	if n := histogramCount(t, m.reg, "store_operation_duration_seconds"); n == 0 {
		t.Fatal("store latency not observed")
	}
}

// content

func TestContentMetrics(t *testing.T) {
	m := New()
	m.IncStatsFailure("ventures")
	m.IncLeadSubmitted("business")
	m.IncContentWrite("content", nil)
	m.IncContentWrite("content", errors.New("x"))
	m.IncMediaKitDownload("profile.pdf")

	if v := vecValue(t, m.reg, "dashboard_count_failures_total", "metric", "ventures"); v != 1 {
		t.Fatalf("stats failures = %f, want 1", v)
	}
	if v := vecValue(t, m.reg, "leads_submitted_total", "category", "business"); v != 1 {
		t.Fatalf("leads = %f, want 1", v)
	}
	if v := vecValue(t, m.reg, "content_writes_total", "result", "error"); v != 1 {
		t.Fatalf("failed writes = %f, want 1", v)
	}
	if v := vecValue(t, m.reg, "media_kit_downloads_total", "asset", "profile.pdf"); v != 1 {
		t.Fatalf("downloads = %f, want 1", v)
	}
}

// 5xx error counter

func TestMiddleware_5xxIncrementsErrorCounter(t *testing.T) {
	m := New()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if v := counterValue(t, m.reg, "http_errors_total"); v != 1 {
		t.Fatalf("http_errors_total = %f, want 1", v)
	}
}

func TestMiddleware_4xxDoesNotIncrementErrorCounter(t *testing.T) {
	m := New()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if f := gatherMetric(t, m.reg, "http_errors_total"); f != nil {
		t.Fatal("http_errors_total should not be present after 404 response")
	}
}

func TestHandler_FullScrape(t *testing.T) {
	m := New()
	dirty := false
	m.SetBuildInfoFromVersion("test", "test", version.Info{Version: "test", VCSDirty: &dirty})
	m.IncHttpPanic()
	m.IncRateLimitDenied("site")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Result().Body)
	if len(body) < 500 {
		t.Fatalf("metrics body suspiciously small: %d bytes", len(body))
	}
}

// helpers

// gatherMetric collects metrics from the registry and finds one by name.
func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func firstMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.Metric {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil || len(f.GetMetric()) == 0 {
		t.Fatalf("metric %q has no samples", name)
	}
	return f.GetMetric()[0]
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	return firstMetric(t, reg, name).GetCounter().GetValue()
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	return firstMetric(t, reg, name).GetGauge().GetValue()
}

// histogramCount returns the sample count of the first metric in a histogram family.
func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	return firstMetric(t, reg, name).GetHistogram().GetSampleCount()
}

func labelsOf(t *testing.T, reg *prometheus.Registry, name string) map[string]string {
	t.Helper()
	labels := make(map[string]string)
	for _, lp := range firstMetric(t, reg, name).GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

// vecValue sums the counter samples whose label key has value val
func vecValue(t *testing.T, reg *prometheus.Registry, name, key, val string) float64 {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil {
		t.Fatalf("metric %q not found", name)
	}
	var sum float64
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == key && lp.GetValue() == val {
				sum += m.GetCounter().GetValue()
			}
		}
	}
	return sum
}
