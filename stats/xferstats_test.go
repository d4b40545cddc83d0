package stats_test

import (
	"testing"

	"github.com/m-lab/nperf/stats"
)

func TestCountersAdd(t *testing.T) {
	a := stats.Counters{Msgs: 1, Calls: 2, Bytes: 100}
	b := stats.Counters{Msgs: 3, Calls: 4, Bytes: 200}
	a.Add(b)
	if a.Msgs != 4 || a.Calls != 6 || a.Bytes != 300 {
		t.Errorf("Add: got %+v", a)
	}
}

func TestXferStatsRoundTrip(t *testing.T) {
	s := stats.XferStats{
		Rx: stats.Counters{Msgs: 10, Calls: 11, Bytes: 12345},
		Tx: stats.Counters{Msgs: 20, Calls: 22, Bytes: 67890},
	}
	b, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(b) != stats.SizeOnWire {
		t.Fatalf("MarshalBinary: got %d bytes, want %d", len(b), stats.SizeOnWire)
	}

	var got stats.XferStats
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got != s {
		t.Errorf("round trip: got %+v, want %+v", got, s)
	}
}

func TestXferStatsUnmarshalShortBuffer(t *testing.T) {
	var s stats.XferStats
	if err := s.UnmarshalBinary(make([]byte, stats.SizeOnWire-1)); err != stats.ErrShortBuffer {
		t.Errorf("got %v, want ErrShortBuffer", err)
	}
}

func TestXferStatsAddReset(t *testing.T) {
	var sum stats.XferStats
	sum.Add(stats.XferStats{Rx: stats.Counters{Bytes: 10}})
	sum.Add(stats.XferStats{Rx: stats.Counters{Bytes: 20}})
	if sum.Rx.Bytes != 30 {
		t.Errorf("Add: got %d, want 30", sum.Rx.Bytes)
	}
	sum.Reset()
	if sum.Rx.Bytes != 0 || sum.Tx.Bytes != 0 {
		t.Errorf("Reset: got %+v, want zero", sum)
	}
}

func TestResult(t *testing.T) {
	client := stats.XferStats{Rx: stats.Counters{Msgs: 100}, Tx: stats.Counters{Msgs: 100}}
	server := stats.XferStats{Rx: stats.Counters{Bytes: 1000000}}

	if got := stats.Result(client, server, stats.ModeStream, 10); got != 100000 {
		t.Errorf("stream result: got %v, want 100000", got)
	}
	if got := stats.Result(client, server, stats.ModeRR, 10); got != 10 {
		t.Errorf("RR result: got %v, want 10", got)
	}
}

func TestMeanDeviation(t *testing.T) {
	// Four identical samples have zero spread.
	if got := stats.MeanDeviation(40, 400, 4); got != 0 {
		t.Errorf("MeanDeviation of identical samples: got %v, want 0", got)
	}
	// A small negative variance from rounding should clamp to zero, not NaN.
	if got := stats.MeanDeviation(10, 24.999999, 4); got != got {
		t.Errorf("MeanDeviation produced NaN: %v", got)
	}
}

func TestModeString(t *testing.T) {
	if stats.ModeStream.String() != "TCP_STREAM" {
		t.Errorf("got %q", stats.ModeStream.String())
	}
	if stats.ModeRR.String() != "TCP_RR" {
		t.Errorf("got %q", stats.ModeRR.String())
	}
}
