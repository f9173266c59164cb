package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
	"github.com/stretchr/testify/require"
)

type verifierFixture struct {
	registry *Registry
	cache    *ReplayCache
	verifier *Verifier
	signer   *protocol.Signer
	key      crypto.PrivateKey
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	t.Helper()

	registry, err := NewRegistry(nil, testLogger())
	require.NoError(t, err)

	addr, key, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, registry.Register("cam-1", addr.String()))

	signer, err := protocol.NewSigner("cam-1", key)
	require.NoError(t, err)

	cache := NewReplayCache()
	return &verifierFixture{
		registry: registry,
		cache:    cache,
		verifier: NewVerifier(registry, cache, protocol.DefaultConfig(), testLogger()),
		signer:   signer,
		key:      key,
	}
}

func (f *verifierFixture) signedPayload(t *testing.T, payload map[string]any) (json.RawMessage, string) {
	t.Helper()

	env, err := f.signer.NewEnvelope(payload)
	require.NoError(t, err)
	return env.Message, env.Signature
}

func TestVerifyAcceptsOnceThenRejectsReplay(t *testing.T) {
	f := newVerifierFixture(t)

	message, sig := f.signedPayload(t, map[string]any{
		"timestamp": time.Now().Unix(),
		"sender_id": "cam-1",
		"data":      "ping",
	})

	require.True(t, f.verifier.Verify(message, sig, "cam-1"))
	require.False(t, f.verifier.Verify(message, sig, "cam-1"))
}

func TestVerifyRejectsUnknownSenderWithoutCaching(t *testing.T) {
	f := newVerifierFixture(t)

	message, sig := f.signedPayload(t, map[string]any{
		"timestamp": time.Now().Unix(),
		"sender_id": "ghost",
	})

	require.False(t, f.verifier.Verify(message, sig, "ghost"))
	require.Equal(t, 0, f.cache.Len())
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	f := newVerifierFixture(t)

	for _, offset := range []time.Duration{-6 * time.Minute, 6 * time.Minute} {
		message, sig := f.signedPayload(t, map[string]any{
			"timestamp": time.Now().Add(offset).Unix(),
			"sender_id": "cam-1",
		})
		require.False(t, f.verifier.Verify(message, sig, "cam-1"), "offset %v", offset)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	f := newVerifierFixture(t)

	_, otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherSigner, err := protocol.NewSigner("cam-1", otherKey)
	require.NoError(t, err)

	env, err := otherSigner.NewEnvelope(map[string]any{
		"timestamp": time.Now().Unix(),
		"sender_id": "cam-1",
	})
	require.NoError(t, err)

	require.False(t, f.verifier.Verify(env.Message, env.Signature, "cam-1"))
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	f := newVerifierFixture(t)

	message, _ := f.signedPayload(t, map[string]any{
		"timestamp": time.Now().Unix(),
		"sender_id": "cam-1",
	})

	require.False(t, f.verifier.Verify(message, "not-a-signature", "cam-1"))
	require.False(t, f.verifier.Verify(message, "", "cam-1"))
}

func TestVerifyRejectsPayloadWithoutTimestamp(t *testing.T) {
	f := newVerifierFixture(t)

	message, sig := f.signedPayload(t, map[string]any{
		"sender_id": "cam-1",
		"data":      "no clock",
	})

	require.False(t, f.verifier.Verify(message, sig, "cam-1"))
}

func TestVerifyDigestCollisionBySenderAndTimestamp(t *testing.T) {
	// The replay digest is keyed on (sender, timestamp) only: a second
	// payload with different content but the same timestamp is treated
	// as a replay.
	f := newVerifierFixture(t)
	ts := time.Now().Unix()

	ping, pingSig := f.signedPayload(t, map[string]any{
		"timestamp": ts,
		"sender_id": "cam-1",
		"data":      "ping",
	})
	pong, pongSig := f.signedPayload(t, map[string]any{
		"timestamp": ts,
		"sender_id": "cam-1",
		"data":      "pong",
	})

	require.True(t, f.verifier.Verify(ping, pingSig, "cam-1"))
	require.False(t, f.verifier.Verify(pong, pongSig, "cam-1"))
}

func TestVerifyKeyRotation(t *testing.T) {
	f := newVerifierFixture(t)

	// Rotate cam-1 to a new key.
	newAddr, newKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, f.registry.Register("cam-1", newAddr.String()))

	oldSigned, oldSig := f.signedPayload(t, map[string]any{
		"timestamp": time.Now().Unix(),
		"sender_id": "cam-1",
	})
	require.False(t, f.verifier.Verify(oldSigned, oldSig, "cam-1"))

	newSigner, err := protocol.NewSigner("cam-1", newKey)
	require.NoError(t, err)
	env, err := newSigner.NewEnvelope(map[string]any{
		"timestamp": time.Now().Add(time.Second).Unix(),
		"sender_id": "cam-1",
	})
	require.NoError(t, err)
	require.True(t, f.verifier.Verify(env.Message, env.Signature, "cam-1"))
}

func TestVerifyUpdatesLastSeen(t *testing.T) {
	f := newVerifierFixture(t)

	before, err := f.registry.Lookup("cam-1")
	require.NoError(t, err)

	message, sig := f.signedPayload(t, map[string]any{
		"timestamp": time.Now().Unix(),
		"sender_id": "cam-1",
	})
	require.True(t, f.verifier.Verify(message, sig, "cam-1"))

	after, err := f.registry.Lookup("cam-1")
	require.NoError(t, err)
	require.True(t, !after.LastSeen.Before(before.LastSeen))
}

func TestVerifySweepsExpiredEntries(t *testing.T) {
	f := newVerifierFixture(t)
	f.cache.Record("expired", time.Now().Add(-2*time.Hour))

	message, sig := f.signedPayload(t, map[string]any{
		"timestamp": time.Now().Unix(),
		"sender_id": "cam-1",
	})
	require.True(t, f.verifier.Verify(message, sig, "cam-1"))
	require.False(t, f.cache.Seen("expired"))
}

func TestVerifyClockSkewWithinWindow(t *testing.T) {
	f := newVerifierFixture(t)

	// A timestamp slightly in the future is accepted as long as it is
	// inside the freshness window.
	message, sig := f.signedPayload(t, map[string]any{
		"timestamp": time.Now().Add(2 * time.Minute).Unix(),
		"sender_id": "cam-1",
	})
	require.True(t, f.verifier.Verify(message, sig, "cam-1"))
}
