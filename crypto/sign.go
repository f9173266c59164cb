package crypto

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Digest computes the keccak-256 hash of data. All signatures in the
// system are produced over a Digest of a canonical payload encoding so
// signer and verifier derive identical hashes for equal payloads.
func Digest(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// Sign produces a recoverable signature over a 32-byte digest.
// Signing is deterministic: the same key and digest always yield the
// same signature.
func Sign(digest []byte, key PrivateKey) (Signature, error) {
	ecdsaKey, err := ethcrypto.ToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	sig, err := ethcrypto.Sign(digest, ecdsaKey)
	if err != nil {
		return nil, fmt.Errorf("signing digest: %w", err)
	}
	return Signature(sig), nil
}

// RecoverAddress recovers the signer's address from a signature over the
// given digest. A malformed signature yields an error, never a panic.
func RecoverAddress(digest []byte, sig Signature) (Address, error) {
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("recovering public key: %w", err)
	}
	return Address(ethcrypto.PubkeyToAddress(*pub).Hex()), nil
}
