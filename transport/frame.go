package transport

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/metrics"
)

// Errors surfaced by the transport layer.
var (
	// ErrConnectionClosed reports that the peer closed the connection,
	// including mid-frame: a truncated frame is never returned.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrEmptyControlFrame reports a zero-length frame where a control
	// message was required.
	ErrEmptyControlFrame = errors.New("zero-length control frame")
)

// readChunkSize bounds a single underlying read so one recv call never
// blocks on an unbounded read.
const readChunkSize = 4096

// FramedConn is the length-prefixed message protocol both control
// messages and bulk binary payloads share: every framed message is a
// 4-byte big-endian size prefix followed by exactly that many bytes.
// Raw binary bodies ride unprefixed immediately after their header
// frame, bounded by the size the header declared.
//
// A FramedConn has no inherent maximum frame size; callers bound sizes
// via the application protocol.
type FramedConn struct {
	conn net.Conn
}

// NewFramedConn wraps an established connection.
func NewFramedConn(conn net.Conn) *FramedConn {
	return &FramedConn{conn: conn}
}

// SendFrame writes the size prefix followed by body.
func (f *FramedConn) SendFrame(body []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if err := f.writeAll(prefix[:]); err != nil {
		return err
	}
	if err := f.writeAll(body); err != nil {
		return err
	}
	metrics.RecordFrameSent()
	return nil
}

// RecvFrame reads one frame: the prefix, then exactly that many bytes.
// A peer closing mid-frame yields ErrConnectionClosed, never a short
// buffer.
func (f *FramedConn) RecvFrame() ([]byte, error) {
	prefix, err := f.readExact(4)
	if err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix)

	body, err := f.readExact(int(size))
	if err != nil {
		return nil, err
	}
	metrics.RecordFrameReceived()
	return body, nil
}

// SendControl marshals v to JSON and sends it as one frame.
func (f *FramedConn) SendControl(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding control frame: %w", err)
	}
	return f.SendFrame(body)
}

// RecvControl reads one frame and unmarshals it into v. Control frames
// must not be empty.
func (f *FramedConn) RecvControl(v any) error {
	body, err := f.RecvFrame()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return ErrEmptyControlFrame
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding control frame: %w", err)
	}
	return nil
}

// SendRaw writes data with no size prefix. Used for binary bodies whose
// size the preceding header frame declared.
func (f *FramedConn) SendRaw(data []byte) error {
	if err := f.writeAll(data); err != nil {
		return err
	}
	metrics.RecordStreamedBytes(len(data))
	return nil
}

// RecvRaw reads exactly size unprefixed bytes.
func (f *FramedConn) RecvRaw(size int) ([]byte, error) {
	data, err := f.readExact(size)
	if err != nil {
		return nil, err
	}
	metrics.RecordStreamedBytes(len(data))
	return data, nil
}

// SetDeadline applies a connection-level deadline to both directions.
func (f *FramedConn) SetDeadline(t time.Time) error {
	return f.conn.SetDeadline(t)
}

// Close closes the underlying connection, forcing ErrConnectionClosed on
// any blocked read.
func (f *FramedConn) Close() error {
	return f.conn.Close()
}

// readExact accumulates exactly n bytes in chunks of at most
// readChunkSize per underlying read.
func (f *FramedConn) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	filled := 0
	for filled < n {
		limit := filled + readChunkSize
		if limit > n {
			limit = n
		}
		read, err := f.conn.Read(buf[filled:limit])
		filled += read
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
				errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil, ErrConnectionClosed
			}
			return nil, fmt.Errorf("reading frame: %w", err)
		}
	}
	return buf, nil
}

func (f *FramedConn) writeAll(data []byte) error {
	if _, err := f.conn.Write(data); err != nil {
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return ErrConnectionClosed
		}
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
