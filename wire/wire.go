// Package wire implements the control-channel codec: the fixed-size,
// big-endian, length/version-framed messages exchanged between client and
// server to negotiate a test and report final counters.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/m-lab/nperf/stats"
)

// Version is the control-channel protocol version. A version mismatch is a
// fatal error.
const Version uint32 = 1

// DefaultPort is the well-known control-channel TCP port.
const DefaultPort = 12543

// ErrProtocolVersion is returned when a peer's declared version does not
// match Version.
var ErrProtocolVersion = errors.New("wire: protocol version mismatch")

// ErrProtocolLength is returned when a peer's declared frame length does not
// match the expected size for the message being decoded.
var ErrProtocolLength = errors.New("wire: unexpected frame length")

// Mode mirrors stats.Mode on the wire (u32: 0=TCP_STREAM, 1=TCP_RR).
type Mode = stats.Mode

// ClientStart is the client->server START message.
type ClientStart struct {
	TestID     uint32
	Mode       Mode
	NThreads   uint32
	MsgSize    uint32
	TCPNoDelay bool
}

const clientStartSize = 4 + 4 + 4 + 4 + 4 + 4 + 1 + 3 // length,version,test_id,mode,n_threads,msg_size,nodelay,pad

// MarshalBinary encodes the message body (length+version header included).
func (m ClientStart) MarshalBinary() ([]byte, error) {
	b := make([]byte, clientStartSize)
	binary.BigEndian.PutUint32(b[0:4], clientStartSize)
	binary.BigEndian.PutUint32(b[4:8], Version)
	binary.BigEndian.PutUint32(b[8:12], m.TestID)
	binary.BigEndian.PutUint32(b[12:16], uint32(m.Mode))
	binary.BigEndian.PutUint32(b[16:20], m.NThreads)
	binary.BigEndian.PutUint32(b[20:24], m.MsgSize)
	if m.TCPNoDelay {
		b[24] = 1
	}
	return b, nil
}

// UnmarshalBinary decodes b, which must be exactly clientStartSize bytes
// with the header already validated by ReadMessage.
func (m *ClientStart) UnmarshalBinary(b []byte) error {
	if len(b) != clientStartSize {
		return ErrProtocolLength
	}
	m.TestID = binary.BigEndian.Uint32(b[8:12])
	m.Mode = Mode(binary.BigEndian.Uint32(b[12:16]))
	m.NThreads = binary.BigEndian.Uint32(b[16:20])
	m.MsgSize = binary.BigEndian.Uint32(b[20:24])
	m.TCPNoDelay = b[24] != 0
	return nil
}

func (m ClientStart) wireLen() uint32 { return clientStartSize }

// ServerStart is the server->client reply to START, carrying the ephemeral
// data-listener port.
type ServerStart struct {
	TestID   uint32
	DataPort uint16
}

const serverStartSize = 4 + 4 + 4 + 2 + 2

func (m ServerStart) MarshalBinary() ([]byte, error) {
	b := make([]byte, serverStartSize)
	binary.BigEndian.PutUint32(b[0:4], serverStartSize)
	binary.BigEndian.PutUint32(b[4:8], Version)
	binary.BigEndian.PutUint32(b[8:12], m.TestID)
	binary.BigEndian.PutUint16(b[12:14], m.DataPort)
	return b, nil
}

func (m *ServerStart) UnmarshalBinary(b []byte) error {
	if len(b) != serverStartSize {
		return ErrProtocolLength
	}
	m.TestID = binary.BigEndian.Uint32(b[8:12])
	m.DataPort = binary.BigEndian.Uint16(b[12:14])
	return nil
}

func (m ServerStart) wireLen() uint32 { return serverStartSize }

// ServerEnd is the server->client END header, followed by NThreads
// ThreadInfo records.
type ServerEnd struct {
	TestID           uint32
	Status           uint32
	ThreadInfoLength uint32
	NThreads         uint32
}

const serverEndSize = 4 + 4 + 4 + 4 + 4 + 4

func (m ServerEnd) MarshalBinary() ([]byte, error) {
	b := make([]byte, serverEndSize)
	binary.BigEndian.PutUint32(b[0:4], serverEndSize)
	binary.BigEndian.PutUint32(b[4:8], Version)
	binary.BigEndian.PutUint32(b[8:12], m.TestID)
	binary.BigEndian.PutUint32(b[12:16], m.Status)
	binary.BigEndian.PutUint32(b[16:20], m.ThreadInfoLength)
	binary.BigEndian.PutUint32(b[20:24], m.NThreads)
	return b, nil
}

func (m *ServerEnd) UnmarshalBinary(b []byte) error {
	if len(b) != serverEndSize {
		return ErrProtocolLength
	}
	m.TestID = binary.BigEndian.Uint32(b[8:12])
	m.Status = binary.BigEndian.Uint32(b[12:16])
	m.ThreadInfoLength = binary.BigEndian.Uint32(b[16:20])
	m.NThreads = binary.BigEndian.Uint32(b[20:24])
	return nil
}

func (m ServerEnd) wireLen() uint32 { return serverEndSize }

// ThreadInfo is one per-worker record following ServerEnd, used by the
// client to correlate server-reported counters back to local workers via
// ClientPort.
type ThreadInfo struct {
	Stats      stats.XferStats
	Status     uint32
	ClientPort uint16
}

// ThreadInfoSize is the encoded size of one ThreadInfo record.
const ThreadInfoSize = stats.SizeOnWire + 4 + 2 + 2

func (t ThreadInfo) MarshalBinary() ([]byte, error) {
	b := make([]byte, ThreadInfoSize)
	sb, _ := t.Stats.MarshalBinary()
	copy(b, sb)
	binary.BigEndian.PutUint32(b[stats.SizeOnWire:stats.SizeOnWire+4], t.Status)
	binary.BigEndian.PutUint16(b[stats.SizeOnWire+4:stats.SizeOnWire+6], t.ClientPort)
	return b, nil
}

func (t *ThreadInfo) UnmarshalBinary(b []byte) error {
	if len(b) != ThreadInfoSize {
		return ErrProtocolLength
	}
	if err := t.Stats.UnmarshalBinary(b[:stats.SizeOnWire]); err != nil {
		return err
	}
	t.Status = binary.BigEndian.Uint32(b[stats.SizeOnWire : stats.SizeOnWire+4])
	t.ClientPort = binary.BigEndian.Uint16(b[stats.SizeOnWire+4 : stats.SizeOnWire+6])
	return nil
}

// header mirrors the first two fields common to every control message:
// length and version. Every message's wire layout starts with this pair, so
// receivers can validate it before reading the rest of the frame.
type header struct {
	Length  uint32
	Version uint32
}

const headerSize = 8

func readHeader(r io.Reader) (header, error) {
	var hb [headerSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return header{}, err
	}
	return header{
		Length:  binary.BigEndian.Uint32(hb[0:4]),
		Version: binary.BigEndian.Uint32(hb[4:8]),
	}, nil
}

// sized is implemented by every message type so ReadMessage can validate the
// declared frame length against what the message type expects.
type sized interface {
	wireLen() uint32
}

// ReadMessage reads one fixed-size framed message from r into msg. It first
// reads the common length+version header, validates both against Version
// and msg's expected size, then reads the remaining body. An unexpected
// length or version is a hard protocol error.
func ReadMessage(r io.Reader, msg interface {
	sized
	encodingUnmarshaler
}) error {
	hdr, err := readHeader(r)
	if err != nil {
		return fmt.Errorf("wire: reading header: %w", err)
	}
	want := msg.wireLen()
	if hdr.Length != want {
		return ErrProtocolLength
	}
	if hdr.Version != Version {
		return ErrProtocolVersion
	}

	body := make([]byte, want)
	binary.BigEndian.PutUint32(body[0:4], hdr.Length)
	binary.BigEndian.PutUint32(body[4:8], hdr.Version)
	if _, err := io.ReadFull(r, body[headerSize:]); err != nil {
		return fmt.Errorf("wire: reading body: %w", err)
	}
	return msg.UnmarshalBinary(body)
}

type encodingUnmarshaler interface {
	UnmarshalBinary([]byte) error
}

type encodingMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// WriteMessage writes msg's full wire encoding (header + body) to w.
func WriteMessage(w io.Writer, msg encodingMarshaler) error {
	b, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadThreadInfo reads one ThreadInfo record (no header of its own — it
// immediately follows ServerEnd on the wire).
func ReadThreadInfo(r io.Reader) (ThreadInfo, error) {
	b := make([]byte, ThreadInfoSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return ThreadInfo{}, err
	}
	var t ThreadInfo
	if err := t.UnmarshalBinary(b); err != nil {
		return ThreadInfo{}, err
	}
	return t, nil
}

// WriteThreadInfo writes one ThreadInfo record with no header.
func WriteThreadInfo(w io.Writer, t ThreadInfo) error {
	b, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
