// Package server implements the benchmark server: per-connection workers
// that mirror whatever the client sends (and, in RR mode, echo a reply), a
// per-session control negotiator, and a dual-stack data listener.
package server

import (
	"errors"
	"io"
	"net"

	"github.com/m-lab/nperf/stats"
)

// cacheLinePadding keeps adjacent Worker structs in a slice from sharing a
// cache line, so one worker's counter updates don't force a reload of its
// neighbor's.
const cacheLinePadding = 64

// Worker is one server-side data connection, the mirror image of
// client.Worker: it receives first and has no local clock of its own — the
// test interval is entirely driven by the client, and the worker simply runs
// until the peer closes its side.
type Worker struct {
	ID         int
	ClientPort uint16
	MsgSize    uint32
	Reply      bool // true in RR mode: echo one reply per received message
	Stats      stats.XferStats

	conn net.Conn
	buff []byte

	_ [cacheLinePadding]byte
}

// NewWorker wraps an already-accepted data connection.
func NewWorker(id int, conn net.Conn, clientPort uint16, msgSize uint32, reply bool) *Worker {
	return &Worker{
		ID:         id,
		ClientPort: clientPort,
		MsgSize:    msgSize,
		Reply:      reply,
		conn:       conn,
		buff:       make([]byte, msgSize),
	}
}

// Run receives messages until the client closes the connection, optionally
// echoing a reply after each. It returns nil on an ordinary client-initiated
// close; any other I/O error is returned for the caller to log. The server
// never reports per-worker error status back to the client — ServerEnd.Status
// already carries a session-level outcome.
func (w *Worker) Run() error {
	defer w.conn.Close()
	for {
		eof, err := w.recvMsg()
		if err != nil {
			return err
		}
		if eof {
			return nil
		}
		if w.Reply {
			if err := w.sendMsg(); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) recvMsg() (eof bool, err error) {
	remaining := w.buff
	read := 0
	for len(remaining) > 0 {
		n, err := w.conn.Read(remaining)
		if n > 0 {
			read += n
			w.Stats.Rx.Calls++
			w.Stats.Rx.Bytes += uint64(n)
			remaining = remaining[n:]
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if read == 0 {
					return true, nil
				}
				return false, err
			}
			return false, err
		}
	}
	w.Stats.Rx.Msgs++
	return false, nil
}

func (w *Worker) sendMsg() error {
	remaining := w.buff
	for len(remaining) > 0 {
		n, err := w.conn.Write(remaining)
		if n > 0 {
			w.Stats.Tx.Calls++
			w.Stats.Tx.Bytes += uint64(n)
			remaining = remaining[n:]
		}
		if err != nil {
			return err
		}
	}
	w.Stats.Tx.Msgs++
	return nil
}
