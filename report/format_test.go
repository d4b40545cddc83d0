package report_test

import (
	"strings"
	"testing"

	"github.com/m-lab/nperf/report"
	"github.com/m-lab/nperf/stats"
)

func TestCountExact(t *testing.T) {
	opts := stats.PrintOptions{Unit: stats.UnitBytes, Width: 10, Exact: true}
	got := report.Count(12345, opts)
	if !strings.Contains(got, "12345") {
		t.Errorf("got %q, want it to contain 12345", got)
	}
}

func TestCountHumanized(t *testing.T) {
	opts := stats.NewPrintOptions(stats.ModeStream, false, false)
	got := report.Count(1_500_000, opts)
	if got == "" || strings.Contains(got, "1500000") {
		t.Errorf("got %q, expected a scaled unit", got)
	}
}

func TestRateTransactions(t *testing.T) {
	opts := stats.NewPrintOptions(stats.ModeRR, true, false)
	got := report.Rate(123.4, opts)
	if !strings.Contains(got, "tr/s") {
		t.Errorf("got %q, want it to mention tr/s", got)
	}
}

func TestThreadLineStream(t *testing.T) {
	opts := stats.NewPrintOptions(stats.ModeStream, true, false)
	client := stats.XferStats{Tx: stats.Counters{Bytes: 1000}}
	server := stats.XferStats{Rx: stats.Counters{Bytes: 1000}}
	line := report.ThreadLine(0, client, server, stats.ModeStream, 1.0, opts)
	if !strings.Contains(line, "thread 0") {
		t.Errorf("got %q", line)
	}
}

func TestThreadLineAggregate(t *testing.T) {
	opts := stats.NewPrintOptions(stats.ModeStream, true, false)
	line := report.ThreadLine(-1, stats.XferStats{}, stats.XferStats{}, stats.ModeStream, 1.0, opts)
	if !strings.Contains(line, "total") {
		t.Errorf("got %q, want it to say total", line)
	}
}

func TestIterationLine(t *testing.T) {
	opts := stats.NewPrintOptions(stats.ModeStream, true, false)
	line := report.IterationLine(1, 1, 1000, 1000, 1_000_000, 0, false, opts)
	if !strings.Contains(line, "avg") {
		t.Errorf("got %q, want it to contain avg", line)
	}
}
