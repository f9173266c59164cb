package transport

import "encoding/json"

// Channel is the connection abstraction the application layer exchanges
// messages through. Two implementations exist: SecureChannel, which
// authenticates every control frame and binary header, and
// PlainChannel, a bare framed transport. The implementation is chosen
// once when the channel is constructed, never per message, so a
// connection cannot be downgraded mid-stream.
type Channel interface {
	// Send transmits one structured control payload.
	Send(payload any) error

	// Recv returns the next control payload, verified on the secure
	// implementation.
	Recv() (json.RawMessage, error)

	// SendBinary transmits one raw binary payload. The secure
	// implementation precedes it with a signed size header.
	SendBinary(data []byte) error

	// RecvBinary reads the raw payload the preceding control message
	// declared. declaredSize is the size from that message; the secure
	// implementation cross-checks it against the signed header.
	RecvBinary(declaredSize int) ([]byte, error)

	// Close tears the channel down; blocked reads on the peer observe
	// ErrConnectionClosed.
	Close() error
}

// MessageVerifier accepts or rejects a signed payload from a claimed
// sender. services.Verifier implements it in-process; services.Client
// implements it against a remote verifier.
type MessageVerifier interface {
	Verify(message json.RawMessage, signature, senderID string) bool
}
