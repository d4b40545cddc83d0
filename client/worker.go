// Package client implements the benchmark client: per-connection workers and
// the iteration controller that drives them through the INIT -> CONNECT ->
// RUN lifecycle, collects local and server-reported stats, and repeats until
// a confidence target or iteration bound is reached.
package client

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/m-lab/nperf/stats"
)

// cacheLinePadding keeps adjacent Worker structs in a slice from sharing a
// cache line, so one worker's counter updates don't force a reload of its
// neighbor's.
const cacheLinePadding = 64

// Worker is one client-side data connection. Exactly one goroutine drives a
// Worker's lifecycle; Stats is only safe to read after Run has returned.
type Worker struct {
	ID         int
	MsgSize    uint32
	Reply      bool // true in RR mode: wait for a reply after every send
	RcvBufSize uint32
	SndBufSize uint32
	TCPNoDelay bool

	ClientPort uint16 // filled in by Connect, correlates to the server's ThreadInfo
	Stats      stats.XferStats

	conn   net.Conn
	buff   []byte
	status error

	_ [cacheLinePadding]byte
}

// NewWorker allocates a Worker with its own message buffer. A plain
// per-worker slice is simpler than packing all buffers into one shared arena,
// and there's no FFI boundary here that would make arena-packing worth the
// added bookkeeping.
func NewWorker(id int, msgSize uint32, reply bool) *Worker {
	return &Worker{
		ID:      id,
		MsgSize: msgSize,
		Reply:   reply,
		buff:    make([]byte, msgSize),
	}
}

// Connect dials addr, applying the socket options requested before connect:
// TCP_NODELAY, SO_RCVBUF, SO_SNDBUF. It records the local ephemeral port so
// the controller can correlate this worker's local stats with the server's
// per-connection ThreadInfo record.
func (w *Worker) Connect(addr string) error {
	dialer := net.Dialer{}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return err
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return errors.New("client: dialed connection is not TCP")
	}
	if w.TCPNoDelay {
		if err := tc.SetNoDelay(true); err != nil {
			tc.Close()
			return err
		}
	}
	if w.RcvBufSize > 0 {
		if err := tc.SetReadBuffer(int(w.RcvBufSize)); err != nil {
			tc.Close()
			return err
		}
	}
	if w.SndBufSize > 0 {
		if err := tc.SetWriteBuffer(int(w.SndBufSize)); err != nil {
			tc.Close()
			return err
		}
	}

	local, ok := tc.LocalAddr().(*net.TCPAddr)
	if !ok {
		tc.Close()
		return errors.New("client: local address is not TCP")
	}
	w.ClientPort = uint16(local.Port)
	w.conn = tc
	return nil
}

// Close closes the worker's data connection.
func (w *Worker) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}

// Run drives the send/receive loop until stop fires or the peer closes its
// side (EOF). stop is closed by the controller once the test interval
// elapses; Run reacts promptly by pushing the connection's deadline into the
// past, which unblocks any in-flight Read or Write (see SPEC_FULL.md §4.2 for
// why a deadline substitutes for signal-based cancellation in Go).
func (w *Worker) Run(stop <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		select {
		case <-stop:
			w.conn.SetDeadline(time.Now())
		case <-done:
		}
	}()
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := w.sendMsg(); err != nil {
			w.status = err
			return
		}
		select {
		case <-stop:
			return
		default:
		}
		if w.Reply {
			eof, err := w.recvMsg()
			if err != nil {
				w.status = err
				return
			}
			if eof {
				return
			}
		}
	}
}

// Status returns the terminal error observed by Run, or nil if the worker
// completed without an I/O error (including the ordinary case of being
// stopped by the controller).
func (w *Worker) Status() error {
	var ne net.Error
	if errors.As(w.status, &ne) && ne.Timeout() {
		return nil
	}
	return w.status
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

// recvMsg reads exactly one message's worth of bytes, reporting eof if the
// peer closed the connection before any bytes of this message arrived. Only
// a clean, message-boundary-aligned close counts as end-of-test; a partial
// read followed by EOF is surfaced as an error.
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
