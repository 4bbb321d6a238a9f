package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordComputation("ucs", OutcomeComputed)
	r.RecordComputation("ucs", OutcomeComputed)
	r.RecordComputation("ucs", OutcomeCacheHit)
	r.RecordPersisted("ucs")
	r.RecordBackfill("ucs")
	r.RecordPreview("soja")
	r.RecordLastValue("ucs", 120.5)
	r.RecordLatency("compute", 0.02)

	if got := testutil.ToFloat64(r.computations.WithLabelValues("ucs", OutcomeComputed)); got != 2 {
		t.Errorf("computed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.computations.WithLabelValues("ucs", OutcomeCacheHit)); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.persisted.WithLabelValues("ucs")); got != 1 {
		t.Errorf("persisted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.lastValue.WithLabelValues("ucs")); got != 120.5 {
		t.Errorf("last value = %v, want 120.5", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 6 {
		t.Errorf("gathered %d metric families, want 6", len(families))
	}
}

func TestRecordersUseSeparateRegistries(t *testing.T) {
	// Registering twice on the same registry would panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
