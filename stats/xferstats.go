// Package stats implements the transfer-statistics algebra: per-direction
// byte/message/call counters, their wire encoding, and the aggregate mean /
// mean-deviation bookkeeping used by the iteration controller.
package stats

import (
	"encoding/binary"
	"math"
)

// Mode distinguishes the two benchmark modes.
type Mode uint32

const (
	ModeStream Mode = iota
	ModeRR

	modeCount
)

var modeNames = [modeCount]string{
	ModeStream: "TCP_STREAM",
	ModeRR:     "TCP_RR",
}

func (m Mode) String() string {
	if m >= modeCount {
		return "UNKNOWN"
	}
	return modeNames[m]
}

// Counters holds one direction (rx or tx) of transfer accounting.
//
// Invariant: Calls >= Msgs, and Bytes is within one MsgSize of Msgs*MsgSize
// (a partially completed final message contributes Bytes but not Msgs).
type Counters struct {
	Msgs  uint64
	Calls uint64
	Bytes uint64
}

// Add accumulates src into c.
func (c *Counters) Add(src Counters) {
	c.Msgs += src.Msgs
	c.Calls += src.Calls
	c.Bytes += src.Bytes
}

const counters1Size = 24 // 3 x uint64

func (c Counters) marshalTo(b []byte) {
	binary.BigEndian.PutUint64(b[0:8], c.Msgs)
	binary.BigEndian.PutUint64(b[8:16], c.Calls)
	binary.BigEndian.PutUint64(b[16:24], c.Bytes)
}

func (c *Counters) unmarshalFrom(b []byte) {
	c.Msgs = binary.BigEndian.Uint64(b[0:8])
	c.Calls = binary.BigEndian.Uint64(b[8:16])
	c.Bytes = binary.BigEndian.Uint64(b[16:24])
}

// XferStats is the full rx/tx counter pair for one worker or one aggregate.
type XferStats struct {
	Rx Counters
	Tx Counters
}

// SizeOnWire is the encoded size of an XferStats: 6 big-endian u64 fields.
const SizeOnWire = 2 * counters1Size

// Reset zeroes all counters. Called at the top of each iteration.
func (s *XferStats) Reset() {
	*s = XferStats{}
}

// Add accumulates src into s. Used to build per-test aggregates across
// workers.
func (s *XferStats) Add(src XferStats) {
	s.Rx.Add(src.Rx)
	s.Tx.Add(src.Tx)
}

// MarshalBinary encodes s as 6 big-endian u64 fields: rx.{msgs,calls,bytes},
// tx.{msgs,calls,bytes}.
func (s XferStats) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeOnWire)
	s.Rx.marshalTo(b[0:counters1Size])
	s.Tx.marshalTo(b[counters1Size:])
	return b, nil
}

// UnmarshalBinary decodes b, produced by MarshalBinary, into s.
func (s *XferStats) UnmarshalBinary(b []byte) error {
	if len(b) != SizeOnWire {
		return ErrShortBuffer
	}
	s.Rx.unmarshalFrom(b[0:counters1Size])
	s.Tx.unmarshalFrom(b[counters1Size:])
	return nil
}

// ErrShortBuffer is returned by UnmarshalBinary when the input is not exactly
// SizeOnWire bytes.
var ErrShortBuffer = shortBufferError{}

type shortBufferError struct{}

func (shortBufferError) Error() string { return "stats: buffer is not SizeOnWire bytes" }

// Result computes the iteration's aggregate result: in stream mode, the
// server's received bytes per second; in RR mode, the client's received
// messages per second (replies received, not requests sent — see DESIGN.md's
// Open Question log, this is intentional and not to be "corrected").
func Result(client, server XferStats, mode Mode, elapsedSeconds float64) float64 {
	switch mode {
	case ModeStream:
		return float64(server.Rx.Bytes) / elapsedSeconds
	case ModeRR:
		return float64(client.Rx.Msgs) / elapsedSeconds
	default:
		return 0
	}
}

// MeanDeviation computes the population standard deviation of n samples given
// their sum and sum of squares: sqrt(n*sumSqr - sum*sum) / n.
func MeanDeviation(sum, sumSqr float64, n int) float64 {
	v := float64(n)*sumSqr - sum*sum
	if v < 0 {
		// Rounding error on near-zero variance can push this slightly
		// negative; treat as zero spread rather than NaN.
		v = 0
	}
	return math.Sqrt(v) / float64(n)
}
