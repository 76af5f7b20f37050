package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	mu         sync.Mutex
	counters   []counterCall
	histograms []histCall
	flushCount int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := current()
	t.Cleanup(func() { SetBackend(orig) })
	fb := &fakeBackend{}
	SetBackend(fb)
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("badges_profile", "load", nil, 2*time.Second)
	RecordStep("badges_cleaning", "export", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("counters=%d histograms=%d; want 2 and 2", len(fb.counters), len(fb.histograms))
	}
	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.delta != 1 || c0.labels["status"] != "success" || c0.labels["step"] != "load" {
		t.Fatalf("counter[0]=%#v", c0)
	}
	if h := fb.histograms[0]; h.name != StepDuration || h.value < 1.999 || h.value > 2.001 {
		t.Fatalf("hist[0]=%#v", h)
	}
	if c1 := fb.counters[1]; c1.labels["status"] != "failure" || c1.labels["job"] != "badges_cleaning" {
		t.Fatalf("counter[1]=%#v", c1)
	}
}

func TestTime(t *testing.T) {
	fb := install(t)

	want := errors.New("nope")
	if err := Time("j", "clean", func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("Time returned %v", err)
	}
	if len(fb.counters) != 1 || fb.counters[0].labels["status"] != "failure" {
		t.Fatalf("counters=%#v", fb.counters)
	}
}

func TestRecordRowsBatchesPartitions(t *testing.T) {
	fb := install(t)

	RecordRows("j", KindLoaded, 3)
	RecordRows("j", KindAnomalies, 0)
	RecordBatches("j", 2)
	RecordPartitions("j", -1)
	RecordPartitions("j", 4)

	if len(fb.counters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.counters))
	}
	if c := fb.counters[0]; c.name != RecordsTotal || c.delta != 3 || c.labels["kind"] != KindLoaded {
		t.Fatalf("counter[0]=%#v", c)
	}
	if c := fb.counters[1]; c.name != BatchesTotal || c.delta != 2 {
		t.Fatalf("counter[1]=%#v", c)
	}
	if c := fb.counters[2]; c.name != PartitionsTotal || c.delta != 4 {
		t.Fatalf("counter[2]=%#v", c)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}
	SetBackend(nil)
	if current() != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
