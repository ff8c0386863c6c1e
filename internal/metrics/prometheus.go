package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	rowsRead       prometheus.Counter
	deletionsTotal prometheus.Counter
	guardTrips     prometheus.Counter
	alienSessions  prometheus.Gauge

	eventOutcomes *prometheus.CounterVec

	remoteCallDuration *prometheus.HistogramVec
	remoteCallErrors   *prometheus.CounterVec
	remoteRetries      prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register are logged and become no-ops for that series.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}

	s.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panosync_runs_total",
		Help: "Total number of completed sync runs by result.",
	}, []string{"result"})

	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "panosync_run_duration_seconds",
		Help:    "Duration of each sync run in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	s.rowsRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panosync_rows_read_total",
		Help: "Total timetable rows read from the source.",
	})

	s.deletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panosync_deletions_total",
		Help: "Total remote sessions deleted by end-of-run reconciliation.",
	})

	s.guardTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panosync_low_water_guard_trips_total",
		Help: "Runs in which the low-water guard suppressed deletions.",
	})

	s.alienSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "panosync_alien_sessions",
		Help: "Untagged remote sessions detected in the window of the last run.",
	})

	s.eventOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panosync_events_processed_total",
		Help: "Per-event sync outcomes.",
	}, []string{"outcome"})

	s.remoteCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "panosync_remote_call_duration_seconds",
		Help:    "Remote platform call latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"op"})

	s.remoteCallErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panosync_remote_call_errors_total",
		Help: "Remote platform call failures.",
	}, []string{"op"})

	s.remoteRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panosync_remote_retry_attempts_total",
		Help: "Retries of transient remote faults (excludes first attempts).",
	})

	s.register(reg, s.runsTotal, "panosync_runs_total")
	s.register(reg, s.runDuration, "panosync_run_duration_seconds")
	s.register(reg, s.rowsRead, "panosync_rows_read_total")
	s.register(reg, s.deletionsTotal, "panosync_deletions_total")
	s.register(reg, s.guardTrips, "panosync_low_water_guard_trips_total")
	s.register(reg, s.alienSessions, "panosync_alien_sessions")
	s.register(reg, s.eventOutcomes, "panosync_events_processed_total")
	s.register(reg, s.remoteCallDuration, "panosync_remote_call_duration_seconds")
	s.register(reg, s.remoteCallErrors, "panosync_remote_call_errors_total")
	s.register(reg, s.remoteRetries, "panosync_remote_retry_attempts_total")

	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) RunStarted() {}

func (s *PrometheusSink) RunCompleted(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	s.runsTotal.WithLabelValues(result).Inc()
	s.runDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RowsRead(count int) {
	s.rowsRead.Add(float64(count))
}

func (s *PrometheusSink) DeletionsApplied(count int) {
	s.deletionsTotal.Add(float64(count))
}

func (s *PrometheusSink) LowWaterGuardTripped() {
	s.guardTrips.Inc()
}

func (s *PrometheusSink) AlienSessionsDetected(count int) {
	s.alienSessions.Set(float64(count))
}

func (s *PrometheusSink) EventOutcome(outcome string) {
	s.eventOutcomes.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RemoteCallCompleted(op string, d time.Duration, err error) {
	s.remoteCallDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		s.remoteCallErrors.WithLabelValues(op).Inc()
	}
}

func (s *PrometheusSink) RemoteRetryAttempt() {
	s.remoteRetries.Inc()
}
