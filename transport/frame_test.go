package transport

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipePair(t *testing.T) (*FramedConn, *FramedConn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return NewFramedConn(a), NewFramedConn(b)
}

func TestFrameRoundtrip(t *testing.T) {
	sender, receiver := pipePair(t)

	payload := []byte(`{"hello":"world"}`)
	sendErr := make(chan error, 1)
	go func() { sendErr <- sender.SendFrame(payload) }()

	got, err := receiver.RecvFrame()
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, <-sendErr)
}

func TestFrameEmptyBody(t *testing.T) {
	sender, receiver := pipePair(t)

	sendErr := make(chan error, 1)
	go func() { sendErr <- sender.SendFrame(nil) }()

	got, err := receiver.RecvFrame()
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, <-sendErr)
}

// Payloads larger than one read chunk must arrive intact; the receiver
// accumulates across multiple underlying reads.
func TestFrameLargePayload(t *testing.T) {
	sender, receiver := pipePair(t)

	payload := make([]byte, 2<<20+17)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	sendErr := make(chan error, 1)
	go func() { sendErr <- sender.SendFrame(payload) }()

	got, err := receiver.RecvFrame()
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, got))
	require.NoError(t, <-sendErr)
}

func TestControlRoundtrip(t *testing.T) {
	sender, receiver := pipePair(t)

	type ping struct {
		Seq  int    `json:"seq"`
		Note string `json:"note"`
	}

	sendErr := make(chan error, 1)
	go func() { sendErr <- sender.SendControl(&ping{Seq: 7, Note: "hi"}) }()

	var got ping
	require.NoError(t, receiver.RecvControl(&got))
	require.Equal(t, ping{Seq: 7, Note: "hi"}, got)
	require.NoError(t, <-sendErr)
}

func TestControlRejectsEmptyFrame(t *testing.T) {
	sender, receiver := pipePair(t)

	sendErr := make(chan error, 1)
	go func() { sendErr <- sender.SendFrame(nil) }()

	var got map[string]any
	err := receiver.RecvControl(&got)
	require.ErrorIs(t, err, ErrEmptyControlFrame)
	require.NoError(t, <-sendErr)
}

func TestRawRoundtrip(t *testing.T) {
	sender, receiver := pipePair(t)

	payload := make([]byte, 2*readChunkSize)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	sendErr := make(chan error, 1)
	go func() { sendErr <- sender.SendRaw(payload) }()

	got, err := receiver.RecvRaw(len(payload))
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, got))
	require.NoError(t, <-sendErr)
}

// A peer that disappears mid-frame must yield ErrConnectionClosed, never
// a short buffer.
func TestTruncatedFrameReportsClosed(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() { b.Close() })
	receiver := NewFramedConn(b)

	go func() {
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], 100)
		a.Write(prefix[:])
		a.Write([]byte("only ten b"))
		a.Close()
	}()

	_, err := receiver.RecvFrame()
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestRecvAfterPeerClose(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() { b.Close() })
	receiver := NewFramedConn(b)

	require.NoError(t, a.Close())

	_, err := receiver.RecvFrame()
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestSendAfterPeerClose(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close() })
	sender := NewFramedConn(a)

	require.NoError(t, b.Close())

	err := sender.SendFrame([]byte("dropped"))
	require.ErrorIs(t, err, ErrConnectionClosed)
}
