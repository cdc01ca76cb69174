package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "texbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	registry         *prom.Registry
	compileDuration  *prom.HistogramVec
	compileResults   *prom.CounterVec
	batchDuration    prom.Histogram
	batchOutcome     *prom.CounterVec
	workers          prom.Gauge
	uploadRetries    prom.Counter
	uploadsExhausted prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.compileDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of individual variant compilations",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"variant"})
		pr.compileResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compile_results_total",
			Help:      "Variant compilation results by outcome",
		}, []string{"variant", "result"})
		pr.batchDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Total batch duration",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		})
		pr.batchOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "batch_outcomes_total",
			Help:      "Batch outcomes by final status",
		}, []string{"outcome"})
		pr.workers = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_workers",
			Help:      "Worker pool size of the last batch",
		})
		pr.uploadRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "upload_retries_total",
			Help:      "Artifact upload retries after transient failures",
		})
		pr.uploadsExhausted = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "upload_retry_exhausted_total",
			Help:      "Artifacts whose upload retries were exhausted",
		})
		reg.MustRegister(pr.compileDuration, pr.compileResults, pr.batchDuration, pr.batchOutcome, pr.workers, pr.uploadRetries, pr.uploadsExhausted)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObserveCompileDuration(variant string, d time.Duration) {
	if p == nil || p.compileDuration == nil {
		return
	}
	p.compileDuration.WithLabelValues(variant).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompileResult(variant string, result ResultLabel) {
	if p == nil || p.compileResults == nil {
		return
	}
	p.compileResults.WithLabelValues(variant, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBatchDuration(d time.Duration) {
	if p == nil || p.batchDuration == nil {
		return
	}
	p.batchDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBatchOutcome(outcome string) {
	if p == nil || p.batchOutcome == nil {
		return
	}
	p.batchOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetWorkers(n int) {
	if p == nil || p.workers == nil {
		return
	}
	p.workers.Set(float64(n))
}

func (p *PrometheusRecorder) IncUploadRetry() {
	if p == nil || p.uploadRetries == nil {
		return
	}
	p.uploadRetries.Inc()
}

func (p *PrometheusRecorder) IncUploadRetryExhausted() {
	if p == nil || p.uploadsExhausted == nil {
		return
	}
	p.uploadsExhausted.Inc()
}
