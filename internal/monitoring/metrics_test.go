package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SamplesPushed.Inc()
	m.EpochsSkipped.Add(3)

	if got := testutil.ToFloat64(m.SamplesPushed); got != 1 {
		t.Errorf("samples pushed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EpochsSkipped); got != 3 {
		t.Errorf("epochs skipped = %v, want 3", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}

func TestNopMetricsUsableWithoutRegistry(t *testing.T) {
	m := NopMetrics()
	m.TrainingRuns.Inc()
	m.ClassifyLatency.Observe(0.01)
	if got := testutil.ToFloat64(m.TrainingRuns); got != 1 {
		t.Errorf("training runs = %v, want 1", got)
	}
}
