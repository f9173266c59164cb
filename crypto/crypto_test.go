package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	addr, key, err := GenerateKey()
	require.NoError(t, err)

	digest := Digest([]byte("authenticated transport test payload"))
	sig, err := Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig.Bytes(), 65)

	recovered, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	require.True(t, addr.Equal(recovered))
}

func TestSignDeterministic(t *testing.T) {
	_, key, err := GenerateKey()
	require.NoError(t, err)

	digest := Digest([]byte("same payload"))
	sig1, err := Sign(digest, key)
	require.NoError(t, err)
	sig2, err := Sign(digest, key)
	require.NoError(t, err)
	require.Equal(t, sig1.Bytes(), sig2.Bytes())
}

func TestRecoverTamperedDigest(t *testing.T) {
	addr, key, err := GenerateKey()
	require.NoError(t, err)

	sig, err := Sign(Digest([]byte("original")), key)
	require.NoError(t, err)

	recovered, err := RecoverAddress(Digest([]byte("tampered")), sig)
	if err == nil {
		// Recovery may succeed on a tampered digest but must yield a
		// different address.
		require.False(t, addr.Equal(recovered))
	}
}

func TestRecoverMalformedSignature(t *testing.T) {
	digest := Digest([]byte("payload"))
	_, err := RecoverAddress(digest, Signature(make([]byte, 65)))
	require.Error(t, err)
}

func TestAddressEqualCaseInsensitive(t *testing.T) {
	addr, _, err := GenerateKey()
	require.NoError(t, err)

	upper := Address(strings.ToUpper(addr.String()[2:]))
	lower := Address("0x" + strings.ToLower(addr.String()[2:]))
	require.True(t, lower.Equal(Address("0x"+string(upper))))
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	addr, key, err := GenerateKey()
	require.NoError(t, err)

	parsed, err := NewPrivateKeyFromString(key.String())
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), parsed.Bytes())

	derived, err := parsed.Address()
	require.NoError(t, err)
	require.True(t, addr.Equal(derived))
}

func TestNewPrivateKeyFromStringRejectsBadInput(t *testing.T) {
	_, err := NewPrivateKeyFromString("not-hex")
	require.Error(t, err)

	_, err = NewPrivateKeyFromString("abcd")
	require.Error(t, err)
}

func TestNewAddressFromString(t *testing.T) {
	addr, _, err := GenerateKey()
	require.NoError(t, err)

	parsed, err := NewAddressFromString(addr.String())
	require.NoError(t, err)
	require.True(t, addr.Equal(parsed))

	_, err = NewAddressFromString("0x1234")
	require.Error(t, err)

	_, err = NewSignatureFromString("zzzz")
	require.Error(t, err)
}
