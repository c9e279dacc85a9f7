package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe outcomes recorded by IncProbe.
const (
	ProbeOK      = "ok"
	ProbeFailed  = "failed"
	ProbeTimeout = "timeout"
)

// Metrics holds Prometheus counters and gauges for the session controller and
// the overlay API. All methods are safe to call on a nil *Metrics, which
// disables recording (e.g. in tests).
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal  prometheus.Counter
	errorsTotal    prometheus.Counter
	responsesTotal *prometheus.CounterVec

	sessionsStartedTotal   prometheus.Counter
	sessionStartFailures   prometheus.Counter
	sessionsStoppedTotal   prometheus.Counter
	sessionStopFailures    prometheus.Counter
	sessionUnexpectedExits prometheus.Counter
	activeSession          prometheus.Gauge

	probesTotal *prometheus.CounterVec

	playlistsServedTotal prometheus.Counter
	segmentsServedTotal  prometheus.Counter
	segmentsWrittenTotal prometheus.Counter

	overlayOpsTotal *prometheus.CounterVec
}

// New creates and registers the Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtsp_overlay_http_responses_total",
			Help: "Total number of HTTP responses by route pattern and status code",
		}, []string{"route", "code"}),
		sessionsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_sessions_started_total",
			Help: "Total number of transcoding sessions started",
		}),
		sessionStartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_session_start_failures_total",
			Help: "Total number of session starts where the transcoder failed to come up",
		}),
		sessionsStoppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_sessions_stopped_total",
			Help: "Total number of sessions stopped on request",
		}),
		sessionStopFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_session_stop_failures_total",
			Help: "Total number of stops where the transcoder did not exit in time",
		}),
		sessionUnexpectedExits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_session_unexpected_exits_total",
			Help: "Total number of sessions whose transcoder exited without a stop request",
		}),
		activeSession: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtsp_overlay_session_active",
			Help: "1 while a transcoding session is running, otherwise 0",
		}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtsp_overlay_probes_total",
			Help: "Total number of connectivity probes by outcome",
		}, []string{"outcome"}),
		playlistsServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_playlists_served_total",
			Help: "Total number of normalized playlists served",
		}),
		segmentsServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_segments_served_total",
			Help: "Total number of media segments served",
		}),
		segmentsWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtsp_overlay_segments_written_total",
			Help: "Total number of media segments created by the transcoder",
		}),
		overlayOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtsp_overlay_overlay_operations_total",
			Help: "Total number of successful overlay operations by kind",
		}, []string{"op"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.responsesTotal,
		m.sessionsStartedTotal,
		m.sessionStartFailures,
		m.sessionsStoppedTotal,
		m.sessionStopFailures,
		m.sessionUnexpectedExits,
		m.activeSession,
		m.probesTotal,
		m.playlistsServedTotal,
		m.segmentsServedTotal,
		m.segmentsWrittenTotal,
		m.overlayOpsTotal,
	)

	return m
}

// ObserveResponse records one HTTP response. Codes of 400 and above also
// count as errors.
func (m *Metrics) ObserveResponse(route string, code int) {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
	if code >= http.StatusBadRequest {
		m.errorsTotal.Inc()
	}
	m.responsesTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// SessionStarted records a successful start and raises the active gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStartedTotal.Inc()
	m.activeSession.Set(1)
}

// SessionStartFailed records a spawn that did not survive warm-up.
func (m *Metrics) SessionStartFailed() {
	if m == nil {
		return
	}
	m.sessionStartFailures.Inc()
}

// SessionStopped records an explicit stop. failed marks a stop whose
// termination did not complete; the session is idle either way.
func (m *Metrics) SessionStopped(failed bool) {
	if m == nil {
		return
	}
	m.sessionsStoppedTotal.Inc()
	if failed {
		m.sessionStopFailures.Inc()
	}
	m.activeSession.Set(0)
}

// SessionExitedUnexpectedly records a transcoder that died on its own.
func (m *Metrics) SessionExitedUnexpectedly() {
	if m == nil {
		return
	}
	m.sessionUnexpectedExits.Inc()
	m.activeSession.Set(0)
}

// IncProbe records a connectivity probe outcome (ProbeOK, ProbeFailed, ProbeTimeout).
func (m *Metrics) IncProbe(outcome string) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(outcome).Inc()
}

// IncPlaylistsServed increments the playlist serve counter.
func (m *Metrics) IncPlaylistsServed() {
	if m == nil {
		return
	}
	m.playlistsServedTotal.Inc()
}

// IncSegmentsServed increments the segment serve counter.
func (m *Metrics) IncSegmentsServed() {
	if m == nil {
		return
	}
	m.segmentsServedTotal.Inc()
}

// IncSegmentsWritten increments the counter of segments created on disk.
func (m *Metrics) IncSegmentsWritten() {
	if m == nil {
		return
	}
	m.segmentsWrittenTotal.Inc()
}

// IncOverlayOp records a successful overlay create/list/update/delete.
func (m *Metrics) IncOverlayOp(op string) {
	if m == nil {
		return
	}
	m.overlayOpsTotal.WithLabelValues(op).Inc()
}

// SetActiveSession sets the active session gauge.
func (m *Metrics) SetActiveSession(running bool) {
	if m == nil {
		return
	}
	if running {
		m.activeSession.Set(1)
	} else {
		m.activeSession.Set(0)
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
