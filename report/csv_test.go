package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/m-lab/nperf/report"
	"github.com/m-lab/nperf/stats"
)

func TestWriteRawCSV(t *testing.T) {
	rows := []report.RawRow{
		report.NewRawRow(1, "0", stats.XferStats{Rx: stats.Counters{Msgs: 1, Calls: 1, Bytes: 10}}, 1.0),
		report.NewRawRow(1, "total", stats.XferStats{Rx: stats.Counters{Msgs: 1, Calls: 1, Bytes: 10}}, 1.0),
	}

	var buf bytes.Buffer
	if err := report.WriteRawCSV(&buf, rows); err != nil {
		t.Fatalf("WriteRawCSV: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "rx_bytes") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "total") {
		t.Errorf("missing total row: %q", out)
	}
}
