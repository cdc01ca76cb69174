package metrics

import "time"

// ResultLabel enumerates compile result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultTimeout  ResultLabel = "timeout"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for compiles, batches and uploads.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveCompileDuration(variant string, d time.Duration)
	IncCompileResult(variant string, result ResultLabel)
	ObserveBatchDuration(d time.Duration)
	IncBatchOutcome(outcome string) // outcome: success|failed|canceled
	SetWorkers(n int)
	IncUploadRetry()
	IncUploadRetryExhausted()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompileDuration(string, time.Duration) {}
func (NoopRecorder) IncCompileResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBatchDuration(time.Duration)           {}
func (NoopRecorder) IncBatchOutcome(string)                       {}
func (NoopRecorder) SetWorkers(int)                               {}
func (NoopRecorder) IncUploadRetry()                              {}
func (NoopRecorder) IncUploadRetryExhausted()                     {}
