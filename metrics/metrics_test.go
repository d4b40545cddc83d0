package metrics_test

import (
	"testing"

	"github.com/m-lab/nperf/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAccumulate(t *testing.T) {
	metrics.BytesTotal.WithLabelValues("rx", "client").Add(10)
	metrics.MessagesTotal.WithLabelValues("rx", "client").Inc()
	metrics.WorkerErrorCount.WithLabelValues("client", "io").Inc()
	metrics.IterationCount.WithLabelValues("ok").Inc()
	metrics.SessionsTotal.WithLabelValues("ok").Inc()
	metrics.ActiveWorkerGauge.WithLabelValues("client").Set(1)

	if got := testutil.ToFloat64(metrics.BytesTotal.WithLabelValues("rx", "client")); got != 10 {
		t.Errorf("BytesTotal: got %v, want 10", got)
	}
	if got := testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues("rx", "client")); got != 1 {
		t.Errorf("MessagesTotal: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("SessionsTotal: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ActiveWorkerGauge.WithLabelValues("client")); got != 1 {
		t.Errorf("ActiveWorkerGauge: got %v, want 1", got)
	}
}

func TestHistogramsCollect(t *testing.T) {
	metrics.IterationResultHistogram.Observe(1234)
	metrics.ConfidenceHalfWidthRatio.Observe(0.03)

	if n := testutil.CollectAndCount(metrics.IterationResultHistogram); n == 0 {
		t.Error("IterationResultHistogram produced no samples")
	}
	if n := testutil.CollectAndCount(metrics.ConfidenceHalfWidthRatio); n == 0 {
		t.Error("ConfidenceHalfWidthRatio produced no samples")
	}
}
