package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "commerce"

// CronJobMetrics instruments the scheduled maintenance jobs.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	skipped  prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Subsystem: "cron", Name: name, Help: help}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(opts("job_runs_total", "Cron job runs by outcome."), []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of each cron job run.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"job"}),
		rows:    prometheus.NewCounterVec(opts("job_rows_affected_total", "Rows a cron job deleted or updated."), []string{"job"}),
		skipped: prometheus.NewCounter(opts("cycles_skipped_total", "Cycles skipped because another instance held the lock.")),
	}
	reg.MustRegister(m.runs, m.duration, m.rows, m.skipped)
	return m
}

// ObserveRun records one run of job. A non-nil err counts as a failure.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, rows int64, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	c.runs.WithLabelValues(job, outcome).Inc()
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if rows > 0 {
		c.rows.WithLabelValues(job).Add(float64(rows))
	}
}

func (c *CronJobMetrics) IncSkippedCycle() {
	if c == nil {
		return
	}
	c.skipped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
