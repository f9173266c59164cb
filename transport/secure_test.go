package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
	"github.com/anirbankanungoe/IoT-Blockchain/services"
)

type channelFixture struct {
	registry *services.Registry
	verifier *services.Verifier
	cfg      *protocol.Config
	log      *slog.Logger
}

func newChannelFixture(t *testing.T) *channelFixture {
	t.Helper()
	log := slog.Default()
	registry, err := services.NewRegistry(nil, log)
	require.NoError(t, err)
	cfg := protocol.DefaultConfig()
	return &channelFixture{
		registry: registry,
		verifier: services.NewVerifier(registry, services.NewReplayCache(), cfg, log),
		cfg:      cfg,
		log:      log,
	}
}

// registeredSigner generates a key, registers its address under
// serviceID, and returns a signer for it.
func (f *channelFixture) registeredSigner(t *testing.T, serviceID string) *protocol.Signer {
	t.Helper()
	addr, key, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, f.registry.Register(serviceID, addr.String()))
	signer, err := protocol.NewSigner(serviceID, key)
	require.NoError(t, err)
	return signer
}

// unregisteredSigner returns a signer whose address the registry has
// never seen.
func (f *channelFixture) unregisteredSigner(t *testing.T, serviceID string) *protocol.Signer {
	t.Helper()
	_, key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := protocol.NewSigner(serviceID, key)
	require.NoError(t, err)
	return signer
}

// channelPair builds two secure channels over an in-memory pipe and runs
// the handshake, initiator first. Both errors are returned so tests can
// assert either side.
func (f *channelFixture) channelPair(t *testing.T, initiator, responder *protocol.Signer) (*SecureChannel, *SecureChannel, error, error) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	init := NewSecureChannel(a, initiator, f.verifier, f.cfg, f.log)
	resp := NewSecureChannel(b, responder, f.verifier, f.cfg, f.log)

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- resp.AcceptHandshake() }()
	initErr := init.Handshake()
	return init, resp, initErr, <-acceptErr
}

func TestHandshakeAuthenticatesBothSides(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, camera, storage)
	require.NoError(t, initErr)
	require.NoError(t, acceptErr)

	require.Equal(t, Authenticated, init.State())
	require.Equal(t, Authenticated, resp.State())
	require.Equal(t, "camera-node", resp.PeerID())
}

func TestHandshakeRejectsUnknownInitiator(t *testing.T) {
	f := newChannelFixture(t)
	imposter := f.unregisteredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, imposter, storage)
	require.ErrorIs(t, acceptErr, ErrHandshakeFailed)
	// No ack is ever sent; the initiator sees the connection drop.
	require.ErrorIs(t, initErr, ErrHandshakeFailed)

	require.Equal(t, Closed, init.State())
	require.Equal(t, Closed, resp.State())
}

func TestHandshakeRejectsWrongKey(t *testing.T) {
	f := newChannelFixture(t)
	// The claimed service id is registered, but under someone else's key.
	_, key, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherAddr, _, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, f.registry.Register("camera-node", otherAddr.String()))
	imposter, err := protocol.NewSigner("camera-node", key)
	require.NoError(t, err)
	storage := f.registeredSigner(t, "storage-node")

	_, _, initErr, acceptErr := f.channelPair(t, imposter, storage)
	require.ErrorIs(t, acceptErr, ErrHandshakeFailed)
	require.ErrorIs(t, initErr, ErrHandshakeFailed)
}

func TestSecureControlRoundtrip(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, camera, storage)
	require.NoError(t, initErr)
	require.NoError(t, acceptErr)

	cmd := &protocol.CaptureCommand{
		Command:        protocol.CommandStartCapture,
		RequestID:      "req-42",
		RequesterEmail: "ops@example.com",
	}
	sendErr := make(chan error, 1)
	go func() { sendErr <- init.Send(cmd) }()

	raw, err := resp.Recv()
	require.NoError(t, err)
	require.NoError(t, <-sendErr)

	got, err := protocol.UnmarshalMessage[protocol.CaptureCommand](raw)
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

// Two payloads sent back to back land within the same second; the
// channel must bump timestamps so the replay cache, keyed on
// (sender, timestamp), accepts both.
func TestRapidSendsAvoidReplayCollision(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, camera, storage)
	require.NoError(t, initErr)
	require.NoError(t, acceptErr)

	for i := 0; i < 5; i++ {
		payload := map[string]int{"seq": i}
		sendErr := make(chan error, 1)
		go func() { sendErr <- init.Send(payload) }()

		raw, err := resp.Recv()
		require.NoError(t, err)
		require.NoError(t, <-sendErr)

		var got map[string]int
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, i, got["seq"])
	}
}

// Many connections handshaking at once against one shared verifier must
// all authenticate; the replay cache reservation is per (sender,
// timestamp) and every sender is distinct.
func TestConcurrentHandshakes(t *testing.T) {
	f := newChannelFixture(t)

	const peers = 8
	responder := f.registeredSigner(t, "storage-node")

	errs := make(chan error, peers*2)
	for i := 0; i < peers; i++ {
		initiator := f.registeredSigner(t, fmt.Sprintf("camera-%d", i))

		a, b := net.Pipe()
		t.Cleanup(func() {
			a.Close()
			b.Close()
		})
		init := NewSecureChannel(a, initiator, f.verifier, f.cfg, f.log)
		resp := NewSecureChannel(b, responder, f.verifier, f.cfg, f.log)

		go func() { errs <- resp.AcceptHandshake() }()
		go func() { errs <- init.Handshake() }()
	}

	for i := 0; i < peers*2; i++ {
		require.NoError(t, <-errs)
	}
}

func TestRecvRejectsRotatedKey(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, camera, storage)
	require.NoError(t, initErr)
	require.NoError(t, acceptErr)

	// The responder's registration is replaced after the handshake;
	// its subsequent messages no longer match the registered key.
	rotated, _, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, f.registry.Register("storage-node", rotated.String()))

	sendErr := make(chan error, 1)
	go func() { sendErr <- resp.Send(map[string]string{"status": "ready"}) }()

	_, err = init.Recv()
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.NoError(t, <-sendErr)
}

func TestBinaryRoundtrip(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, camera, storage)
	require.NoError(t, initErr)
	require.NoError(t, acceptErr)

	payload := make([]byte, 3*readChunkSize+9)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	sendErr := make(chan error, 1)
	go func() { sendErr <- init.SendBinary(payload) }()

	got, err := resp.RecvBinary(len(payload))
	require.NoError(t, err)
	require.NoError(t, <-sendErr)
	require.Equal(t, payload, got)
}

func TestBinaryRejectsSizeMismatch(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, camera, storage)
	require.NoError(t, initErr)
	require.NoError(t, acceptErr)

	payload := []byte("binary body")
	sendErr := make(chan error, 1)
	go func() { sendErr <- init.SendBinary(payload) }()

	_, err := resp.RecvBinary(len(payload) + 1)
	require.ErrorIs(t, err, ErrVerificationFailed)
	// The sender may or may not have managed its raw write before the
	// pipe is torn down; only the receiver's error matters here.
	init.Close()
	<-sendErr
}

func TestSendRequiresAuthentication(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")

	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	ch := NewSecureChannel(a, camera, f.verifier, f.cfg, f.log)

	err := ch.Send(map[string]string{"early": "message"})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = ch.Recv()
	require.ErrorIs(t, err, ErrInvalidState)

	err = ch.SendBinary([]byte("early"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestHandshakeAfterCloseFails(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")

	a, b := net.Pipe()
	t.Cleanup(func() { b.Close() })
	ch := NewSecureChannel(a, camera, f.verifier, f.cfg, f.log)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close()) // idempotent

	err := ch.Handshake()
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, Closed, ch.State())
}

func TestStateTransitions(t *testing.T) {
	f := newChannelFixture(t)
	camera := f.registeredSigner(t, "camera-node")
	storage := f.registeredSigner(t, "storage-node")

	init, resp, initErr, acceptErr := f.channelPair(t, camera, storage)
	require.NoError(t, initErr)
	require.NoError(t, acceptErr)
	require.Equal(t, Authenticated, init.State())

	sendErr := make(chan error, 1)
	go func() { sendErr <- init.Send(map[string]string{"k": "v"}) }()
	_, err := resp.Recv()
	require.NoError(t, err)
	require.NoError(t, <-sendErr)

	require.Equal(t, Streaming, init.State())
	require.Equal(t, Streaming, resp.State())

	require.NoError(t, init.Close())
	require.Equal(t, Closed, init.State())
}
