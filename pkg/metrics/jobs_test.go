package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.IncSuccess("sweep")
	m.IncSuccess("sweep")
	m.IncFailure("sweep")
	m.ObserveDuration("sweep", 250*time.Millisecond)
	m.AddSweepCounts("sweep", 10, 3)

	if got := testutil.ToFloat64(m.success.WithLabelValues("sweep")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("sweep")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.checked.WithLabelValues("sweep")); got != 10 {
		t.Fatalf("expected 10 checked, got %v", got)
	}
	if got := testutil.ToFloat64(m.updated.WithLabelValues("sweep")); got != 3 {
		t.Fatalf("expected 3 updated, got %v", got)
	}
}

func TestJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewJobMetrics(nil)
	m.IncSuccess("sweep")
	m.IncFailure("sweep")
	m.ObserveDuration("sweep", time.Second)
	m.AddSweepCounts("sweep", 1, 1)
}

func TestNormalizeLabel(t *testing.T) {
	if normalizeLabel("") != "unknown" {
		t.Fatal("empty label should normalize to unknown")
	}
	if normalizeLabel("sweep") != "sweep" {
		t.Fatal("label should pass through")
	}
}
