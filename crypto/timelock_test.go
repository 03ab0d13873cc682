package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomMaterial(t *testing.T) []byte {
	t.Helper()
	material := make([]byte, SecretMaterialSize)
	_, err := rand.Read(material)
	require.NoError(t, err)
	return material
}

func TestSealUnsealRoundTrip(t *testing.T) {
	material := randomMaterial(t)

	sealed, err := Seal(material, 42, EncodeBidAmount(1337))
	require.NoError(t, err)

	plaintext, err := Unseal(material, 42, sealed)
	require.NoError(t, err)

	amount, err := DecodeBidAmount(plaintext)
	require.NoError(t, err)
	require.Equal(t, uint64(1337), amount)
}

func TestUnsealRejectsWrongSlot(t *testing.T) {
	material := randomMaterial(t)

	sealed, err := Seal(material, 42, []byte("sealed for slot 42"))
	require.NoError(t, err)

	_, err = Unseal(material, 43, sealed)
	require.Error(t, err)
}

func TestUnsealRejectsWrongMaterial(t *testing.T) {
	sealed, err := Seal(randomMaterial(t), 7, EncodeBit(1))
	require.NoError(t, err)

	_, err = Unseal(randomMaterial(t), 7, sealed)
	require.Error(t, err)
}

func TestUnsealRejectsTamperedCiphertext(t *testing.T) {
	material := randomMaterial(t)

	sealed, err := Seal(material, 7, EncodeBidAmount(100))
	require.NoError(t, err)
	sealed.Ciphertext[0] ^= 0xff

	_, err = Unseal(material, 7, sealed)
	require.Error(t, err)
}

func TestSealedInputSerialization(t *testing.T) {
	material := randomMaterial(t)

	sealed, err := Seal(material, 9, EncodeBidAmount(55))
	require.NoError(t, err)

	parsed, err := ParseSealedInput(sealed.Bytes())
	require.NoError(t, err)
	require.Equal(t, sealed.Nonce, parsed.Nonce)
	require.Equal(t, sealed.Ciphertext, parsed.Ciphertext)

	plaintext, err := Unseal(material, 9, parsed)
	require.NoError(t, err)

	amount, err := DecodeBidAmount(plaintext)
	require.NoError(t, err)
	require.Equal(t, uint64(55), amount)
}

func TestParseSealedInputTooShort(t *testing.T) {
	_, err := ParseSealedInput(make([]byte, 10))
	require.Error(t, err)
}

func TestDecodeRejectsBadLengths(t *testing.T) {
	_, err := DecodeBidAmount([]byte{1, 2, 3})
	require.Error(t, err)

	_, err = DecodeBit([]byte{1, 2})
	require.Error(t, err)
}

func TestSignatureRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sig, err := Sign(priv, []byte("commitment envelope"))
	require.NoError(t, err)
	require.True(t, sig.Verify(pub, []byte("commitment envelope")))
	require.False(t, sig.Verify(pub, []byte("something else")))

	derived, err := priv.PublicKey()
	require.NoError(t, err)
	require.True(t, pub.Equal(derived))
}

func TestPublicKeyHexRoundTrip(t *testing.T) {
	pub, _, err := GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := NewPublicKeyFromString(pub.String())
	require.NoError(t, err)
	require.True(t, pub.Equal(parsed))

	_, err = NewPublicKeyFromString("zz")
	require.Error(t, err)
}
