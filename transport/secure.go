package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/metrics"
	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
)

// Errors surfaced by the secure channel.
var (
	// ErrHandshakeFailed reports a failed connect-time handshake. Fatal
	// to the connection attempt only; there is no retry at this layer.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrVerificationFailed reports a control frame or binary header
	// that did not verify.
	ErrVerificationFailed = errors.New("message verification failed")

	// ErrInvalidState reports an operation issued outside the state it
	// is legal in.
	ErrInvalidState = errors.New("invalid channel state")
)

// State is the secure channel lifecycle position.
type State int

// Channel states, in connection order.
const (
	Disconnected State = iota
	Connected
	Authenticated
	Streaming
	Closed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SecureChannel composes the framed transport with signing and
// verification: a connect-time handshake mutually authenticates the
// socket before payload exchange, every control frame is a signed
// envelope, and every binary payload is preceded by a signed size
// header. The raw bytes following a header are not separately signed.
type SecureChannel struct {
	framed   *FramedConn
	signer   *protocol.Signer
	verifier MessageVerifier
	cfg      *protocol.Config
	log      *slog.Logger

	mu     sync.Mutex
	state  State
	peerID string

	// lastTimestamp guarantees this sender never reuses a payload
	// timestamp. The replay digest is keyed on (sender, timestamp), so
	// two envelopes signed within the same second would collide and the
	// second would be rejected as a replay.
	lastTimestamp int64
}

var _ Channel = (*SecureChannel)(nil)

// NewSecureChannel wraps an established connection. The channel starts
// in Connected state; run Handshake or AcceptHandshake before exchanging
// payloads.
func NewSecureChannel(conn net.Conn, signer *protocol.Signer, verifier MessageVerifier, cfg *protocol.Config, log *slog.Logger) *SecureChannel {
	return &SecureChannel{
		framed:   NewFramedConn(conn),
		signer:   signer,
		verifier: verifier,
		cfg:      cfg,
		log:      log,
		state:    Connected,
	}
}

// Dial connects to addr and performs the initiator handshake.
func Dial(addr string, signer *protocol.Signer, verifier MessageVerifier, cfg *protocol.Config, log *slog.Logger) (*SecureChannel, error) {
	conn, err := net.DialTimeout("tcp", addr, cfg.HandshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	ch := NewSecureChannel(conn, signer, verifier, cfg, log)
	if err := ch.Handshake(); err != nil {
		return nil, err
	}
	return ch, nil
}

// State returns the channel's current lifecycle state.
func (c *SecureChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PeerID returns the authenticated peer's service id. Empty on the
// initiator side and before authentication.
func (c *SecureChannel) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// Handshake runs the initiator side: send a signed
// {service_id, timestamp} frame and wait for the acknowledgement.
// Any failure closes the channel and surfaces ErrHandshakeFailed.
func (c *SecureChannel) Handshake() error {
	if err := c.requireState(Connected); err != nil {
		return err
	}

	c.framed.SetDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	defer c.framed.SetDeadline(time.Time{})

	data := protocol.HandshakeData{
		ServiceID: c.signer.ServiceID(),
		Timestamp: c.nextTimestamp(),
	}
	signature, err := c.signer.Sign(data)
	if err != nil {
		c.fail()
		return fmt.Errorf("%w: signing handshake: %v", ErrHandshakeFailed, err)
	}

	if err := c.framed.SendControl(protocol.NewHandshakeMessage(data, signature)); err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	var ack protocol.HandshakeAck
	if err := c.framed.RecvControl(&ack); err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if !ack.Acknowledged() {
		c.fail()
		return fmt.Errorf("%w: peer rejected handshake", ErrHandshakeFailed)
	}

	c.setState(Authenticated)
	metrics.RecordHandshake("ok")
	return nil
}

// AcceptHandshake runs the responder side: receive the handshake frame,
// verify it, and acknowledge. A failed verification closes the channel
// without an acknowledgement.
func (c *SecureChannel) AcceptHandshake() error {
	if err := c.requireState(Connected); err != nil {
		return err
	}

	c.framed.SetDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	defer c.framed.SetDeadline(time.Time{})

	var msg protocol.HandshakeMessage
	if err := c.framed.RecvControl(&msg); err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if !msg.Valid() {
		c.fail()
		return fmt.Errorf("%w: malformed handshake frame", ErrHandshakeFailed)
	}

	payload, err := json.Marshal(msg.Data)
	if err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if !c.verifier.Verify(payload, msg.Signature, msg.Data.ServiceID) {
		c.fail()
		c.log.Warn("handshake verification failed", "service_id", msg.Data.ServiceID)
		return ErrHandshakeFailed
	}

	if err := c.framed.SendControl(protocol.NewHandshakeAck()); err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	c.mu.Lock()
	c.peerID = msg.Data.ServiceID
	c.state = Authenticated
	c.mu.Unlock()

	metrics.RecordHandshake("ok")
	c.log.Info("peer authenticated", "service_id", msg.Data.ServiceID)
	return nil
}

// Send signs payload inside a control message and transmits it as an
// envelope frame.
func (c *SecureChannel) Send(payload any) error {
	if err := c.requireStreaming(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	msg := &protocol.ControlMessage{
		Timestamp: c.nextTimestamp(),
		Data:      data,
		SenderID:  c.signer.ServiceID(),
	}
	envelope, err := c.signer.NewEnvelope(msg)
	if err != nil {
		return fmt.Errorf("signing control message: %w", err)
	}
	return c.framed.SendControl(envelope)
}

// Recv reads the next envelope frame, verifies it, and returns the
// application payload it carries.
func (c *SecureChannel) Recv() (json.RawMessage, error) {
	if err := c.requireStreaming(); err != nil {
		return nil, err
	}

	var envelope protocol.Envelope
	if err := c.framed.RecvControl(&envelope); err != nil {
		return nil, err
	}

	meta, err := envelope.Meta()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if !c.verifier.Verify(envelope.Message, envelope.Signature, meta.SenderID) {
		return nil, ErrVerificationFailed
	}

	var msg protocol.ControlMessage
	if err := json.Unmarshal(envelope.Message, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return msg.Data, nil
}

// SendBinary sends a signed header frame declaring the payload size,
// then the raw bytes.
func (c *SecureChannel) SendBinary(data []byte) error {
	if err := c.requireStreaming(); err != nil {
		return err
	}

	header := protocol.BinaryHeader{
		Timestamp: c.nextTimestamp(),
		Size:      len(data),
		SenderID:  c.signer.ServiceID(),
	}
	signature, err := c.signer.Sign(header)
	if err != nil {
		return fmt.Errorf("signing binary header: %w", err)
	}

	if err := c.framed.SendControl(&protocol.SignedBinaryHeader{Header: header, Signature: signature}); err != nil {
		return err
	}
	return c.framed.SendRaw(data)
}

// RecvBinary reads and verifies the signed header frame, cross-checks
// the declared size, then reads exactly that many raw bytes.
func (c *SecureChannel) RecvBinary(declaredSize int) ([]byte, error) {
	if err := c.requireStreaming(); err != nil {
		return nil, err
	}

	var signed protocol.SignedBinaryHeader
	if err := c.framed.RecvControl(&signed); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(signed.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if !c.verifier.Verify(payload, signed.Signature, signed.Header.SenderID) {
		return nil, ErrVerificationFailed
	}
	if declaredSize > 0 && signed.Header.Size != declaredSize {
		return nil, fmt.Errorf("%w: header size %d does not match declared size %d",
			ErrVerificationFailed, signed.Header.Size, declaredSize)
	}

	return c.framed.RecvRaw(signed.Header.Size)
}

// Close transitions the channel to Closed and tears down the socket.
func (c *SecureChannel) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.state = Closed
	c.mu.Unlock()
	return c.framed.Close()
}

func (c *SecureChannel) nextTimestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().Unix()
	if now <= c.lastTimestamp {
		now = c.lastTimestamp + 1
	}
	c.lastTimestamp = now
	return now
}

func (c *SecureChannel) requireState(want State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != want {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, c.state, want)
	}
	return nil
}

// requireStreaming allows payload exchange once authenticated and moves
// the channel into Streaming on first use.
func (c *SecureChannel) requireStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Authenticated:
		c.state = Streaming
		return nil
	case Streaming:
		return nil
	default:
		return fmt.Errorf("%w: %s, want authenticated", ErrInvalidState, c.state)
	}
}

func (c *SecureChannel) fail() {
	metrics.RecordHandshake("failed")
	c.mu.Lock()
	c.state = Closed
	c.mu.Unlock()
	c.framed.Close()
}

func (c *SecureChannel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
