// Package telemetry exports Prometheus metrics for the scheduler, queue and
// executors.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service Prometheus metrics.
type Metrics struct {
	// Scheduler metrics
	SweepsTotal    prometheus.Counter
	SweepDuration  prometheus.Histogram
	JobsCreated    prometheus.Counter
	RunsReconciled prometheus.Counter
	JobsReclaimed  prometheus.Counter

	// Executor metrics
	JobsSucceeded    *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	EntitiesUpserted prometheus.Counter

	// Queue metrics
	QueueDepth prometheus.Gauge
	TriggerLag prometheus.Histogram
}

// Provider wraps the metric set and its HTTP exposition handler.
type Provider struct {
	Metrics *Metrics
}

// NewProvider registers all metrics on the default registry.
func NewProvider() *Provider {
	return &Provider{Metrics: initMetrics()}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initSchedulerMetrics(m)
	initExecutorMetrics(m)
	initQueueMetrics(m)
	return m
}

func initSchedulerMetrics(m *Metrics) {
	m.SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindshare_sweeps_total",
		Help: "Total scheduler sweeps executed",
	})

	m.SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mindshare_sweep_duration_seconds",
		Help:    "Time to run one scheduler sweep",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	m.JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindshare_jobs_created_total",
		Help: "Total prompt jobs created by sweep fan-out",
	})

	m.RunsReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindshare_runs_reconciled_total",
		Help: "Total runs stamped executed by the reconciler",
	})

	m.JobsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindshare_jobs_reclaimed_total",
		Help: "Total stuck processing jobs re-queued after lease expiry",
	})
}

func initExecutorMetrics(m *Metrics) {
	m.JobsSucceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindshare_jobs_succeeded_total",
		Help: "Total jobs that produced a recorded response",
	}, []string{"provider"})

	m.JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindshare_jobs_failed_total",
		Help: "Total jobs that ended in failure",
	}, []string{"provider", "reason"})

	m.JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mindshare_job_duration_seconds",
		Help:    "Time from claim to terminal state for one job",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	m.EntitiesUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindshare_entities_upserted_total",
		Help: "Total entity mention upserts",
	})
}

func initQueueMetrics(m *Metrics) {
	m.QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mindshare_queue_depth",
		Help: "Current trigger stream length",
	})

	m.TriggerLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mindshare_trigger_lag_seconds",
		Help:    "Time between trigger dispatch and pickup",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	})
}

// RecordSweep records one completed sweep.
func (p *Provider) RecordSweep(duration time.Duration, jobsCreated int) {
	p.Metrics.SweepsTotal.Inc()
	p.Metrics.SweepDuration.Observe(duration.Seconds())
	p.Metrics.JobsCreated.Add(float64(jobsCreated))
}

// RecordJobSuccess records a successful job execution.
func (p *Provider) RecordJobSuccess(providerName string, duration time.Duration) {
	p.Metrics.JobsSucceeded.WithLabelValues(providerName).Inc()
	p.Metrics.JobDuration.WithLabelValues(providerName).Observe(duration.Seconds())
	p.Metrics.EntitiesUpserted.Inc()
}

// RecordJobFailure records a failed job execution.
func (p *Provider) RecordJobFailure(providerName, reason string, duration time.Duration) {
	p.Metrics.JobsFailed.WithLabelValues(providerName, reason).Inc()
	p.Metrics.JobDuration.WithLabelValues(providerName).Observe(duration.Seconds())
}

// RecordReconcile records one reconciler pass.
func (p *Provider) RecordReconcile(runsStamped, jobsReclaimed int64) {
	p.Metrics.RunsReconciled.Add(float64(runsStamped))
	p.Metrics.JobsReclaimed.Add(float64(jobsReclaimed))
}

// RecordTriggerLag records how long a trigger waited in the stream.
func (p *Provider) RecordTriggerLag(enqueuedAt time.Time) {
	if enqueuedAt.IsZero() {
		return
	}
	p.Metrics.TriggerLag.Observe(time.Since(enqueuedAt).Seconds())
}

// SetQueueDepth sets the current trigger stream length.
func (p *Provider) SetQueueDepth(depth int64) {
	p.Metrics.QueueDepth.Set(float64(depth))
}
