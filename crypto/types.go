package crypto

import (
	"encoding/hex"
	"errors"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Address identifies a service's key on the wire. It is the keccak-derived
// account address of a secp256k1 public key, hex-encoded with a 0x prefix.
// Registries store addresses, not raw public keys, and comparisons are
// case-insensitive since peers may differ in checksum capitalization.
type Address string

// NewAddressFromString normalizes a hex address string.
func NewAddressFromString(s string) (Address, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != 40 {
		return "", errors.New("invalid address length")
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return "", err
	}
	return Address("0x" + trimmed), nil
}

// Equal compares two addresses ignoring hex capitalization.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

// String returns the hex representation of the address.
func (a Address) String() string {
	return string(a)
}

// PrivateKey represents a secp256k1 signing key as its 32-byte scalar.
// Private keys never leave the owning service; only signatures and the
// derived address are transmitted.
type PrivateKey []byte

// NewPrivateKeyFromBytes creates a PrivateKey from a byte slice.
// This function makes a copy of the input data to ensure immutability.
func NewPrivateKeyFromBytes(data []byte) PrivateKey {
	sk := make([]byte, len(data))
	copy(sk, data)
	return PrivateKey(sk)
}

// NewPrivateKeyFromString creates a PrivateKey from a hex-encoded string.
func NewPrivateKeyFromString(data string) (PrivateKey, error) {
	rawBytes, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
	if err != nil {
		return nil, err
	}
	if len(rawBytes) != 32 {
		return nil, errors.New("invalid private key size")
	}
	return NewPrivateKeyFromBytes(rawBytes), nil
}

// Bytes returns the private key scalar. This method should be used
// carefully as it exposes sensitive key material.
func (sk PrivateKey) Bytes() []byte {
	return sk
}

// String returns the hex-encoded private key scalar.
func (sk PrivateKey) String() string {
	return hex.EncodeToString(sk)
}

// Address derives the account address corresponding to this private key.
func (sk PrivateKey) Address() (Address, error) {
	key, err := ethcrypto.ToECDSA(sk)
	if err != nil {
		return "", err
	}
	return Address(ethcrypto.PubkeyToAddress(key.PublicKey).Hex()), nil
}

// GenerateKey generates a new secp256k1 key and its address.
func GenerateKey() (Address, PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return "", nil, err
	}
	addr := Address(ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	return addr, PrivateKey(ethcrypto.FromECDSA(key)), nil
}

// Signature is a 65-byte recoverable ECDSA signature (R ∥ S ∥ V).
// The verifier recovers the signer's address from the signature alone,
// so envelopes carry no public key material.
type Signature []byte

// NewSignatureFromString creates a Signature from a hex-encoded string.
func NewSignatureFromString(data string) (Signature, error) {
	rawBytes, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
	if err != nil {
		return nil, err
	}
	if len(rawBytes) != 65 {
		return nil, errors.New("invalid signature size")
	}
	return Signature(rawBytes), nil
}

// Bytes returns the signature as a byte slice.
func (s Signature) Bytes() []byte {
	return []byte(s)
}

// String returns a hex-encoded string representation of the signature.
func (s Signature) String() string {
	return hex.EncodeToString(s)
}
