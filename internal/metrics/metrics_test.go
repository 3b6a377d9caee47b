package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	mu         sync.Mutex
	counters   []call
	histograms []call
	flushes    int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	SetBackend(fb)
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("loginetl", "receive", nil, 2*time.Second)
	RecordStep("loginetl", "load", errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.histograms, 2)

	assert.Equal(t, call{StepTotal, 1, Labels{"job": "loginetl", "step": "receive", "status": "success"}}, fb.counters[0])
	assert.Equal(t, "failure", fb.counters[1].labels["status"])
	assert.Equal(t, StepDuration, fb.histograms[0].name)
	assert.InDelta(t, 2.0, fb.histograms[0].value, 0.001)
	assert.InDelta(t, 1.5, fb.histograms[1].value, 0.001)
}

func TestRecordRows_IgnoresNonPositive(t *testing.T) {
	fb := install(t)

	RecordRows("j", "loaded", 0)
	RecordRows("j", "loaded", -1)
	RecordRows("j", "upserted", 3)

	require.Len(t, fb.counters, 1)
	assert.Equal(t, call{RecordsTotal, 3, Labels{"job": "j", "kind": "upserted"}}, fb.counters[0])
}

func TestRecordOutcome(t *testing.T) {
	fb := install(t)

	RecordOutcome("j", "no_message")

	require.Len(t, fb.counters, 1)
	assert.Equal(t, Labels{"job": "j", "outcome": "no_message"}, fb.counters[0].labels)
}

func TestSetBackend_NilKeepsCurrent(t *testing.T) {
	fb := install(t)

	SetBackend(nil)
	require.NoError(t, Flush())

	assert.Equal(t, 1, fb.flushes)
}

func TestNopBackend_Safe(t *testing.T) {
	orig := backend
	t.Cleanup(func() { backend = orig })
	backend = nopBackend{}

	RecordStep("j", "s", nil, time.Millisecond)
	RecordRows("j", "k", 1)
	assert.NoError(t, Flush())
}
