package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verdict",
		Name:      "runs_total",
		Help:      "Scenario runs by terminal status.",
	}, []string{"status"})
	metricRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "verdict",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a scenario run, child process included.",
		Buckets:   []float64{5, 10, 20, 30, 60, 120, 300, 600},
	})
	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "verdict",
		Name:      "active_sessions",
		Help:      "Runs currently holding a browser session slot.",
	})
)

// RecordRun counts a finished run under its terminal status.
func RecordRun(status string, elapsed time.Duration) {
	metricRunsTotal.WithLabelValues(status).Inc()
	metricRunDuration.Observe(elapsed.Seconds())
}

// SessionAcquired and SessionReleased track the orchestrator's session slots.
func SessionAcquired() { metricActiveSessions.Inc() }

func SessionReleased() { metricActiveSessions.Dec() }
