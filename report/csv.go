package report

import (
	"io"

	"github.com/gocarina/gocsv"

	"github.com/m-lab/nperf/stats"
)

// RawRow is one machine-readable per-thread (or per-iteration-total, when
// ThreadID is "total") raw counter row, for --verbosity=raw.
// Field names mirror xfer_stats_print_raw's column layout.
type RawRow struct {
	Iteration  int    `csv:"iteration"`
	ThreadID   string `csv:"thread"`
	RxCalls    uint64 `csv:"rx_calls"`
	RxMsgs     uint64 `csv:"rx_msgs"`
	RxBytes    uint64 `csv:"rx_bytes"`
	TxCalls    uint64 `csv:"tx_calls"`
	TxMsgs     uint64 `csv:"tx_msgs"`
	TxBytes    uint64 `csv:"tx_bytes"`
	ElapsedSec float64 `csv:"elapsed_seconds"`
}

// NewRawRow builds a RawRow from one worker's stats (or the aggregate, when
// threadID is "total").
func NewRawRow(iteration int, threadID string, s stats.XferStats, elapsed float64) RawRow {
	return RawRow{
		Iteration:  iteration,
		ThreadID:   threadID,
		RxCalls:    s.Rx.Calls,
		RxMsgs:     s.Rx.Msgs,
		RxBytes:    s.Rx.Bytes,
		TxCalls:    s.Tx.Calls,
		TxMsgs:     s.Tx.Msgs,
		TxBytes:    s.Tx.Bytes,
		ElapsedSec: elapsed,
	}
}

// WriteRawCSV marshals rows to w as CSV, header included.
func WriteRawCSV(w io.Writer, rows []RawRow) error {
	return gocsv.Marshal(rows, w)
}
