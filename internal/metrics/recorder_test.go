package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testRecorder counts calls; used to check that the Recorder interface stays
// implementable outside this package's concrete types.
type testRecorder struct {
	mu             sync.Mutex
	compileResults map[string]map[ResultLabel]int
	batchOutcomes  map[string]int
}

var _ Recorder = (*testRecorder)(nil)
var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func newTestRecorder() *testRecorder {
	return &testRecorder{compileResults: map[string]map[ResultLabel]int{}, batchOutcomes: map[string]int{}}
}

func (t *testRecorder) ObserveCompileDuration(string, time.Duration) {}
func (t *testRecorder) IncCompileResult(variant string, r ResultLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.compileResults[variant] == nil {
		t.compileResults[variant] = map[ResultLabel]int{}
	}
	t.compileResults[variant][r]++
}
func (t *testRecorder) ObserveBatchDuration(time.Duration) {}
func (t *testRecorder) IncBatchOutcome(o string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batchOutcomes[o]++
}
func (t *testRecorder) SetWorkers(int)           {}
func (t *testRecorder) IncUploadRetry()          {}
func (t *testRecorder) IncUploadRetryExhausted() {}

func TestRecorderCounts(t *testing.T) {
	r := newTestRecorder()
	var rec Recorder = r
	rec.IncCompileResult("student", ResultSuccess)
	rec.IncCompileResult("student", ResultSuccess)
	rec.IncBatchOutcome("failed")

	assert.Equal(t, 2, r.compileResults["student"][ResultSuccess])
	assert.Equal(t, 1, r.batchOutcomes["failed"])
}
