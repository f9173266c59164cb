package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
)

// Envelope is the unit exchanged between services: an opaque payload plus
// a hex-encoded recoverable signature over the payload's canonical
// encoding. The payload must carry sender_id and timestamp fields; the
// envelope itself is immutable once created.
type Envelope struct {
	Message   json.RawMessage `json:"message"`
	Signature string          `json:"signature"`
}

// EnvelopeMeta is the subset of payload fields every signed message must
// carry. Verification reads these to locate the sender's registered key
// and to enforce freshness and replay bounds.
type EnvelopeMeta struct {
	SenderID  string `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
}

// Meta extracts the sender and timestamp from the envelope payload.
func (e *Envelope) Meta() (EnvelopeMeta, error) {
	var meta EnvelopeMeta
	if err := json.Unmarshal(e.Message, &meta); err != nil {
		return EnvelopeMeta{}, fmt.Errorf("reading envelope metadata: %w", err)
	}
	if meta.SenderID == "" {
		return EnvelopeMeta{}, errors.New("envelope payload missing sender_id")
	}
	if meta.Timestamp == 0 {
		return EnvelopeMeta{}, errors.New("envelope payload missing timestamp")
	}
	return meta, nil
}

// Signer produces signatures for a service's outgoing messages.
// It does not inject sender_id or timestamp into payloads: callers set
// those before signing, which keeps signing composable with arbitrary
// message shapes (control messages, binary headers, handshake payloads).
type Signer struct {
	serviceID string
	key       crypto.PrivateKey
	address   crypto.Address
}

// NewSigner creates a signer for the given service identity.
func NewSigner(serviceID string, key crypto.PrivateKey) (*Signer, error) {
	if serviceID == "" {
		return nil, errors.New("signer requires a service id")
	}
	addr, err := key.Address()
	if err != nil {
		return nil, fmt.Errorf("deriving signer address: %w", err)
	}
	return &Signer{serviceID: serviceID, key: key, address: addr}, nil
}

// ServiceID returns the identity this signer signs for.
func (s *Signer) ServiceID() string {
	return s.serviceID
}

// Address returns the hex address peers verify this signer against.
func (s *Signer) Address() crypto.Address {
	return s.address
}

// Sign computes the hex signature over the canonical encoding of payload.
// Deterministic: the same payload always yields the same signature.
func (s *Signer) Sign(payload any) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(crypto.Digest(canonical), s.key)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// NewEnvelope signs payload and wraps it with its signature.
func (s *Signer) NewEnvelope(payload any) (*Envelope, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(crypto.Digest(canonical), s.key)
	if err != nil {
		return nil, err
	}
	return &Envelope{Message: canonical, Signature: sig.String()}, nil
}

// RecoverSigner recovers the address that signed message. The message is
// canonicalized before hashing so the recovered address matches the
// signer's regardless of field ordering in transit.
func RecoverSigner(message json.RawMessage, signature string) (crypto.Address, error) {
	canonical, err := CanonicalizeJSON(message)
	if err != nil {
		return "", err
	}
	sig, err := crypto.NewSignatureFromString(signature)
	if err != nil {
		return "", fmt.Errorf("parsing signature: %w", err)
	}
	return crypto.RecoverAddress(crypto.Digest(canonical), sig)
}
