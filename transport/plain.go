package transport

import (
	"encoding/json"
	"net"
)

// PlainChannel is the insecure capability switch: a bare framed
// transport with no handshake and no signatures. It exists so a
// deployment can disable authentication per channel instance at
// construction time; business logic never branches on the mode.
type PlainChannel struct {
	framed *FramedConn
}

var _ Channel = (*PlainChannel)(nil)

// NewPlainChannel wraps an established connection without authentication.
func NewPlainChannel(conn net.Conn) *PlainChannel {
	return &PlainChannel{framed: NewFramedConn(conn)}
}

// Send transmits payload as one unsigned JSON frame.
func (c *PlainChannel) Send(payload any) error {
	return c.framed.SendControl(payload)
}

// Recv returns the next frame as raw JSON.
func (c *PlainChannel) Recv() (json.RawMessage, error) {
	body, err := c.framed.RecvFrame()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyControlFrame
	}
	return json.RawMessage(body), nil
}

// SendBinary writes data with no header; the receiver learns the size
// from the preceding control message.
func (c *PlainChannel) SendBinary(data []byte) error {
	return c.framed.SendRaw(data)
}

// RecvBinary reads exactly declaredSize raw bytes.
func (c *PlainChannel) RecvBinary(declaredSize int) ([]byte, error) {
	return c.framed.RecvRaw(declaredSize)
}

// Close closes the underlying connection.
func (c *PlainChannel) Close() error {
	return c.framed.Close()
}
