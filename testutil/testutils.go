package testutil

import (
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
	"github.com/anirbankanungoe/IoT-Blockchain/services"
)

// =====================================
// Configuration Generators
// =====================================

// TestConfigOption is a function that modifies a protocol.Config
type TestConfigOption func(*protocol.Config)

// WithFreshnessWindow sets the timestamp freshness window
func WithFreshnessWindow(window time.Duration) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.FreshnessWindow = window
	}
}

// WithReplayHorizon sets the replay cache retention horizon
func WithReplayHorizon(horizon time.Duration) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.ReplayHorizon = horizon
	}
}

// WithHandshakeTimeout sets the handshake exchange deadline
func WithHandshakeTimeout(timeout time.Duration) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.HandshakeTimeout = timeout
	}
}

// WithMaxImageSize sets the per-image size ceiling
func WithMaxImageSize(size int) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.MaxImageSize = size
	}
}

// WithCaptureDuration sets the capture session time budget
func WithCaptureDuration(duration time.Duration) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.CaptureDuration = duration
	}
}

// WithCaptureInterval sets the pause between captured frames
func WithCaptureInterval(interval time.Duration) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.CaptureInterval = interval
	}
}

// NewTestConfig creates a protocol configuration with capture timings
// shortened for tests, customizable via options
func NewTestConfig(options ...TestConfigOption) *protocol.Config {
	cfg := protocol.DefaultConfig()
	cfg.CaptureDuration = 30 * time.Millisecond
	cfg.CaptureInterval = 10 * time.Millisecond

	for _, option := range options {
		option(cfg)
	}

	return cfg
}

// =====================================
// Identity Generators
// =====================================

// GenerateTestSigner generates a fresh key pair and wraps it in a signer
func GenerateTestSigner(serviceID string) (*protocol.Signer, crypto.Address, error) {
	addr, key, err := crypto.GenerateKey()
	if err != nil {
		return nil, "", err
	}
	signer, err := protocol.NewSigner(serviceID, key)
	if err != nil {
		return nil, "", err
	}
	return signer, addr, nil
}

// NewTestVerifier creates an in-process registry, replay cache and
// verifier sharing the given configuration
func NewTestVerifier(cfg *protocol.Config) (*services.Registry, *services.Verifier, error) {
	log := slog.Default()
	registry, err := services.NewRegistry(nil, log)
	if err != nil {
		return nil, nil, err
	}
	verifier := services.NewVerifier(registry, services.NewReplayCache(), cfg, log)
	return registry, verifier, nil
}

// RegisterTestSigner generates a signer and registers its address
func RegisterTestSigner(registry *services.Registry, serviceID string) (*protocol.Signer, error) {
	signer, addr, err := GenerateTestSigner(serviceID)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(serviceID, addr.String()); err != nil {
		return nil, err
	}
	return signer, nil
}

// =====================================
// Message Generators
// =====================================

// PayloadOption is a function that modifies a ControlMessage before signing
type PayloadOption func(*protocol.ControlMessage)

// WithTimestamp sets the payload timestamp
func WithTimestamp(ts int64) PayloadOption {
	return func(msg *protocol.ControlMessage) {
		msg.Timestamp = ts
	}
}

// WithSenderID sets the claimed sender
func WithSenderID(id string) PayloadOption {
	return func(msg *protocol.ControlMessage) {
		msg.SenderID = id
	}
}

// WithData sets the application payload
func WithData(data json.RawMessage) PayloadOption {
	return func(msg *protocol.ControlMessage) {
		msg.Data = data
	}
}

// GenerateSignedPayload builds a control message for the signer's
// identity with a current timestamp, applies the options, and signs it.
// It returns the canonical message bytes and the signature, ready for a
// verifier.
func GenerateSignedPayload(signer *protocol.Signer, options ...PayloadOption) (json.RawMessage, string, error) {
	msg := &protocol.ControlMessage{
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"kind":"test"}`),
		SenderID:  signer.ServiceID(),
	}

	for _, option := range options {
		option(msg)
	}

	envelope, err := signer.NewEnvelope(msg)
	if err != nil {
		return nil, "", err
	}
	return envelope.Message, envelope.Signature, nil
}

// GenerateRandomBytes generates a slice of random bytes with the specified length
func GenerateRandomBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
