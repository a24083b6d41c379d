package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the ledger core and the
// worker that hosts it.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	entriesPosted   *prometheus.CounterVec
	postDuration    prometheus.Histogram
	entriesVoided   prometheus.Counter
	entriesReversed prometheus.Counter

	schedulerRuns       prometheus.Counter
	schedulerOccurrence *prometheus.CounterVec

	jobsTotal *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	entriesPosted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_entries_posted_total",
		Help: "Journal entries posted, by source module.",
	}, []string{"source"})
	postDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "meridian_ledger_post_duration_seconds",
		Help:    "Wall time of the posting transaction.",
		Buckets: prometheus.DefBuckets,
	})
	entriesVoided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_ledger_entries_voided_total",
		Help: "Draft entries voided.",
	})
	entriesReversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_ledger_entries_reversed_total",
		Help: "Posted entries reversed.",
	})
	schedulerRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_scheduler_runs_total",
		Help: "Recurring scheduler ticks executed.",
	})
	schedulerOccurrence := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_scheduler_occurrences_total",
		Help: "Recurring occurrences by outcome.",
	}, []string{"outcome"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_jobs_total",
		Help: "Background job executions by task and status.",
	}, []string{"task", "status"})
	registry.MustRegister(requests, duration, entriesPosted, postDuration, entriesVoided, entriesReversed,
		schedulerRuns, schedulerOccurrence, jobs)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		entriesPosted:       entriesPosted,
		postDuration:        postDuration,
		entriesVoided:       entriesVoided,
		entriesReversed:     entriesReversed,
		schedulerRuns:       schedulerRuns,
		schedulerOccurrence: schedulerOccurrence,
		jobsTotal:           jobs,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for the ops router.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// EntryPosted satisfies the posting engine's metrics port.
func (m *Metrics) EntryPosted(source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.entriesPosted.WithLabelValues(source).Inc()
	m.postDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) EntryVoided() {
	if m == nil {
		return
	}
	m.entriesVoided.Inc()
}

func (m *Metrics) EntryReversed() {
	if m == nil {
		return
	}
	m.entriesReversed.Inc()
}

// SchedulerRun records one scheduler tick and its per-outcome counts.
func (m *Metrics) SchedulerRun(created, posted, skipped, failed, completed int) {
	if m == nil {
		return
	}
	m.schedulerRuns.Inc()
	m.schedulerOccurrence.WithLabelValues("created").Add(float64(created))
	m.schedulerOccurrence.WithLabelValues("posted").Add(float64(posted))
	m.schedulerOccurrence.WithLabelValues("skipped").Add(float64(skipped))
	m.schedulerOccurrence.WithLabelValues("failed").Add(float64(failed))
	m.schedulerOccurrence.WithLabelValues("completed").Add(float64(completed))
}

// JobObserved records one background task execution.
func (m *Metrics) JobObserved(task, status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(task, status).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
