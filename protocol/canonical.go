package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON produces a deterministic serialization of v: object keys
// sorted lexicographically at every nesting level, no insignificant
// whitespace, numbers preserved verbatim. Signer and verifier both hash
// this encoding, so two structurally equal payloads always produce the
// same digest regardless of field declaration order.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON re-encodes already-serialized JSON into canonical form.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	// Decode through json.Number so integer timestamps survive the
	// round trip byte-for-byte instead of passing through float64.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	// encoding/json sorts map keys, which yields the canonical ordering.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("re-encoding payload: %w", err)
	}
	return out, nil
}
