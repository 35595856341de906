package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the download orchestrator.
type Metrics struct {
	registry                 *prometheus.Registry
	requestsTotal            prometheus.Counter
	errorsTotal              prometheus.Counter
	sessionsStartedTotal     prometheus.Counter
	sessionsStoppedTotal     prometheus.Counter
	videosDownloadedTotal    prometheus.Counter
	videosFailedTotal        prometheus.Counter
	artifactsRegisteredTotal prometheus.Counter
	artifactsServedTotal     prometheus.Counter
	activeSessions           prometheus.Gauge
	pendingArtifacts         prometheus.Gauge
}

// New creates and registers Prometheus metrics for the orchestrator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sessionsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_sessions_started_total",
			Help: "Total number of download sessions started",
		}),
		sessionsStoppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_sessions_stopped_total",
			Help: "Total number of download sessions cancelled by the client",
		}),
		videosDownloadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_videos_downloaded_total",
			Help: "Total number of videos downloaded successfully",
		}),
		videosFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_videos_failed_total",
			Help: "Total number of per-video download failures",
		}),
		artifactsRegisteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_artifacts_registered_total",
			Help: "Total number of artifacts registered for retrieval",
		}),
		artifactsServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytgrab_artifacts_served_total",
			Help: "Total number of artifacts delivered to clients",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ytgrab_active_sessions",
			Help: "Number of download sessions currently running",
		}),
		pendingArtifacts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ytgrab_pending_artifacts",
			Help: "Number of artifacts awaiting retrieval",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sessionsStartedTotal,
		m.sessionsStoppedTotal,
		m.videosDownloadedTotal,
		m.videosFailedTotal,
		m.artifactsRegisteredTotal,
		m.artifactsServedTotal,
		m.activeSessions,
		m.pendingArtifacts,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSessionsStarted increments the sessions started counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStartedTotal.Inc()
}

// IncSessionsStopped increments the sessions stopped counter.
func (m *Metrics) IncSessionsStopped() {
	m.sessionsStoppedTotal.Inc()
}

// IncVideosDownloaded increments the videos downloaded counter.
func (m *Metrics) IncVideosDownloaded() {
	m.videosDownloadedTotal.Inc()
}

// IncVideosFailed increments the per-video failure counter.
func (m *Metrics) IncVideosFailed() {
	m.videosFailedTotal.Inc()
}

// IncArtifactsRegistered increments the artifacts registered counter.
func (m *Metrics) IncArtifactsRegistered() {
	m.artifactsRegisteredTotal.Inc()
}

// IncArtifactsServed increments the artifacts served counter.
func (m *Metrics) IncArtifactsServed() {
	m.artifactsServedTotal.Inc()
}

// AddActiveSessions adds delta to the active sessions gauge.
func (m *Metrics) AddActiveSessions(delta float64) {
	m.activeSessions.Add(delta)
}

// SetPendingArtifacts sets the pending artifacts gauge.
func (m *Metrics) SetPendingArtifacts(n int) {
	m.pendingArtifacts.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (e.g. pending artifacts).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
