package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prabhakardwivedi/corpsite/internal/store"
	"github.com/prabhakardwivedi/corpsite/internal/version"
)

type ServerMetrics struct {
	reg              *prometheus.Registry
	handler          http.Handler
	inflight         prometheus.Gauge
	reqTotal         *prometheus.CounterVec
	reqDur           *prometheus.HistogramVec
	respBytes        *prometheus.HistogramVec
	httpPanicTotal   prometheus.Counter
	errorsTotal      *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec
	ratelimitDenied  *prometheus.CounterVec
	ratelimitFirst   *prometheus.CounterVec
	profilingActive  prometheus.Gauge
	guardTransitions *prometheus.CounterVec
	guardRedirects   prometheus.Counter
	sessionChecks    *prometheus.CounterVec
	wsConnections    prometheus.Gauge
	storeOps         *prometheus.CounterVec
	storeDur         *prometheus.HistogramVec
	statsFailures    *prometheus.CounterVec
	leadsSubmitted   *prometheus.CounterVec
	contentWrites    *prometheus.CounterVec
	mediaKitServed   *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP and domain metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered handler panics",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}, []string{"limiter"}),
		ratelimitFirst: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limited_clients_total",
			Help: "Total number of clients that hit a rate limiter",
		}, []string{"limiter"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		guardTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_guard_transitions_total",
			Help: "Admin view state transitions by target state",
		}, []string{"state"}),
		guardRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_guard_redirects_total",
			Help: "Admin views redirected to the login page",
		}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_checks_total",
			Help: "Session checks by result",
		}, []string{"result"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_ws_connections",
			Help: "Open admin session sockets",
		}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Backing store operations by table, op and result",
		}, []string{"table", "op", "result"}),
		storeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Backing store latency by table and op",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"table", "op"}),
		statsFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_count_failures_total",
			Help: "Dashboard counts that failed and were reported as zero",
		}, []string{"metric"}),
		leadsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leads_submitted_total",
			Help: "Contact form leads stored by category",
		}, []string{"category"}),
		contentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_writes_total",
			Help: "Admin content writes by kind and result",
		}, []string{"kind", "result"}),
		mediaKitServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_kit_downloads_total",
			Help: "Media kit downloads by asset",
		}, []string{"asset"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.errorsTotal,
		m.buildInfo,
		m.ratelimitDenied,
		m.ratelimitFirst,
		m.profilingActive,
		m.guardTransitions,
		m.guardRedirects,
		m.sessionChecks,
		m.wsConnections,
		m.storeOps,
		m.storeDur,
		m.statsFailures,
		m.leadsSubmitted,
		m.contentWrites,
		m.mediaKitServed,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied(limiter string) {
	m.ratelimitDenied.WithLabelValues(limiter).Inc()
}

func (m *ServerMetrics) IncRateLimitFirstDenied(limiter string) {
	m.ratelimitFirst.WithLabelValues(limiter).Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// session.Metrics

func (m *ServerMetrics) IncGuardTransition(state string) {
	m.guardTransitions.WithLabelValues(state).Inc()
}

func (m *ServerMetrics) IncGuardRedirect() {
	m.guardRedirects.Inc()
}

func (m *ServerMetrics) IncSessionCheck(result string) {
	m.sessionChecks.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) WSConnected()    { m.wsConnections.Inc() }
func (m *ServerMetrics) WSDisconnected() { m.wsConnections.Dec() }

// store.Observer

func (m *ServerMetrics) ObserveStoreOp(table, op string, err error, d time.Duration) {
	m.storeOps.WithLabelValues(table, op, storeResult(err)).Inc()
	m.storeDur.WithLabelValues(table, op).Observe(d.Seconds())
}

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case store.IsDuplicate(err):
		return "duplicate"
	}
	return "error"
}

// content.Metrics

func (m *ServerMetrics) IncStatsFailure(metric string) {
	m.statsFailures.WithLabelValues(metric).Inc()
}

func (m *ServerMetrics) IncLeadSubmitted(category string) {
	m.leadsSubmitted.WithLabelValues(category).Inc()
}

func (m *ServerMetrics) IncContentWrite(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.contentWrites.WithLabelValues(kind, result).Inc()
}

func (m *ServerMetrics) IncMediaKitDownload(asset string) {
	m.mediaKitServed.WithLabelValues(asset).Inc()
}
