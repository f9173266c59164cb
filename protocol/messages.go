package protocol

import "encoding/json"

// Control message types carried inside the data field of a signed control
// envelope. Stream framing: an "image" control message is always followed
// by exactly Size raw bytes as the next frame; the two kinds are
// distinguished by protocol position, not an in-band tag.
const (
	TypeStart = "start"
	TypeImage = "image"
	TypeEnd   = "end"
)

// CommandStartCapture requests the capture node to begin a session.
const CommandStartCapture = "start_capture"

// ControlMessage is the signed wrapper around every structured message on
// a secure channel. Data holds the application payload; Timestamp and
// SenderID are the fields the verifier enforces freshness and identity on.
type ControlMessage struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	SenderID  string          `json:"sender_id"`
}

// HandshakeData is the payload of the connect-time handshake frame.
type HandshakeData struct {
	ServiceID string `json:"service_id"`
	Timestamp int64  `json:"timestamp"`
}

// HandshakeMessage opens a secure channel: signed handshake data from the
// initiator, verified by the responder before any payload exchange.
type HandshakeMessage struct {
	Type      string        `json:"type"`
	Data      HandshakeData `json:"data"`
	Signature string        `json:"signature"`
}

// HandshakeAck is the responder's acceptance of a handshake.
type HandshakeAck struct {
	Type string `json:"type"`
}

const (
	handshakeType    = "handshake"
	handshakeAckType = "handshake_ack"
)

// NewHandshakeMessage builds the initiator's handshake frame.
func NewHandshakeMessage(data HandshakeData, signature string) *HandshakeMessage {
	return &HandshakeMessage{Type: handshakeType, Data: data, Signature: signature}
}

// NewHandshakeAck builds the responder's acknowledgement frame.
func NewHandshakeAck() *HandshakeAck {
	return &HandshakeAck{Type: handshakeAckType}
}

// Valid reports whether the message is a well-formed handshake frame.
func (m *HandshakeMessage) Valid() bool {
	return m.Type == handshakeType && m.Data.ServiceID != "" && m.Signature != ""
}

// Acknowledged reports whether the ack frame accepts the handshake.
func (a *HandshakeAck) Acknowledged() bool {
	return a.Type == handshakeAckType
}

// BinaryHeader precedes every raw binary frame on a secure channel. Only
// the header is signed; the raw bytes that follow are bounded by Size but
// not independently authenticated, which keeps signing cost off the
// multi-megabyte payload path.
type BinaryHeader struct {
	Timestamp int64  `json:"timestamp"`
	Size      int    `json:"size"`
	SenderID  string `json:"sender_id"`
}

// SignedBinaryHeader is the wire form of a binary header frame.
type SignedBinaryHeader struct {
	Header    BinaryHeader `json:"header"`
	Signature string       `json:"signature"`
}

// CaptureCommand instructs a capture node to start a session.
type CaptureCommand struct {
	Command        string `json:"command"`
	RequestID      string `json:"request_id"`
	RequesterEmail string `json:"requester_email"`
}

// StartMessage announces the beginning of an image stream.
type StartMessage struct {
	Type           string `json:"type"`
	RequestID      string `json:"request_id"`
	RequesterEmail string `json:"requester_email"`
	Timestamp      int64  `json:"timestamp"`
}

// ImageMetadata announces one image; exactly Size raw bytes follow as the
// next frame.
type ImageMetadata struct {
	Type           string `json:"type"`
	RequestID      string `json:"request_id"`
	ImageNumber    int    `json:"image_number"`
	Timestamp      string `json:"timestamp"`
	Size           int    `json:"size"`
	RequesterEmail string `json:"requester_email"`
}

// EndMessage closes an image stream.
type EndMessage struct {
	Type        string `json:"type"`
	RequestID   string `json:"request_id"`
	TotalImages int    `json:"total_images"`
	Timestamp   int64  `json:"timestamp"`
}

// StreamControl is the discriminating view of a stream control payload:
// decode into this first, then into the concrete message for the type.
type StreamControl struct {
	Type string `json:"type"`
}

// UnmarshalMessage deserializes a message from JSON bytes.
func UnmarshalMessage[T any](data []byte) (*T, error) {
	var msg T
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
