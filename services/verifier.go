package services

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
	"github.com/anirbankanungoe/IoT-Blockchain/metrics"
	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
)

// Verifier decides whether a signed message is authentic and fresh.
// Business-logic failures (unknown sender, stale timestamp, replay, bad
// signature) all collapse to false; the rejection reason is logged but
// never surfaced to the caller.
type Verifier struct {
	registry *Registry
	cache    *ReplayCache
	cfg      *protocol.Config
	log      *slog.Logger

	// now is swappable for tests; production uses time.Now.
	now func() time.Time
}

// NewVerifier composes a verifier from the shared registry and cache.
func NewVerifier(registry *Registry, cache *ReplayCache, cfg *protocol.Config, log *slog.Logger) *Verifier {
	return &Verifier{
		registry: registry,
		cache:    cache,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Verify checks message against the claimed sender. Checks run in order,
// short-circuiting on first failure:
//
//  1. sender must be registered (replay cache untouched otherwise)
//  2. the (sender, timestamp) digest must not already be cached
//  3. the timestamp must be inside the freshness window
//  4. the digest slot is reserved before signature work
//  5. the address recovered from the signature must match the registered
//     key, compared case-insensitively
//
// Whatever the outcome, the replay cache is swept opportunistically to
// bound memory.
func (v *Verifier) Verify(message json.RawMessage, signature, senderID string) bool {
	defer v.sweep()

	identity, err := v.registry.Lookup(senderID)
	if err != nil {
		v.reject(senderID, "unknown sender")
		return false
	}

	var meta struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(message, &meta); err != nil || meta.Timestamp == 0 {
		v.reject(senderID, "payload missing timestamp")
		return false
	}

	digest := ReplayDigest(senderID, meta.Timestamp)
	if v.cache.Seen(digest) {
		v.reject(senderID, "replay")
		return false
	}

	now := v.now()
	age := now.Unix() - meta.Timestamp
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > v.cfg.FreshnessWindow {
		v.reject(senderID, "stale timestamp")
		return false
	}

	if !v.cache.Reserve(digest, now) {
		// A concurrent duplicate won the reservation.
		v.reject(senderID, "replay")
		return false
	}

	recovered, err := protocol.RecoverSigner(message, signature)
	if err != nil {
		v.reject(senderID, "malformed signature")
		return false
	}
	if !recovered.Equal(crypto.Address(identity.PublicKey)) {
		v.reject(senderID, "signer mismatch")
		return false
	}

	v.registry.Touch(senderID, now)
	metrics.RecordVerification(metrics.OutcomeAccepted)
	return true
}

func (v *Verifier) reject(senderID, reason string) {
	v.log.Debug("message rejected", "sender_id", senderID, "reason", reason)
	metrics.RecordVerification(metrics.OutcomeRejected)
}

func (v *Verifier) sweep() {
	v.cache.Sweep(v.cfg.ReplayHorizon)
	metrics.SetReplayCacheSize(v.cache.Len())
}
