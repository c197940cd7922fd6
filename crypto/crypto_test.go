package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyDerivationRoundTrip(t *testing.T) {
	txSecret, txPublic, err := GenerateKeyPair()
	require.NoError(t, err)
	viewSecret, viewPublic, err := GenerateKeyPair()
	require.NoError(t, err)
	spendSecret, spendPublic, err := GenerateKeyPair()
	require.NoError(t, err)
	_ = viewPublic

	derivation, err := KeyDerivationFrom(txPublic, viewSecret)
	require.NoError(t, err)

	expected, err := DeriveOutputKey(derivation, 0, spendPublic)
	require.NoError(t, err)

	oneTimeSecret := DeriveSpendSecret(derivation, 0, spendSecret)
	got := PublicFromSecret(oneTimeSecret)

	require.Equal(t, expected, got, "derived output key must match the secret the owner can spend with")
	_ = txSecret
}

func TestKeyDerivationRejectsBadPoint(t *testing.T) {
	var badPoint PublicKey
	for i := range badPoint {
		badPoint[i] = 0xff
	}
	viewSecret, _, err := GenerateKeyPair()
	require.NoError(t, err)

	_, err = KeyDerivationFrom(badPoint, viewSecret)
	require.Error(t, err)
}

func TestGenerateKeyImageIsOneToOne(t *testing.T) {
	secret1, public1, err := GenerateKeyPair()
	require.NoError(t, err)
	secret2, public2, err := GenerateKeyPair()
	require.NoError(t, err)

	image1 := GenerateKeyImage(public1, secret1)
	image1Again := GenerateKeyImage(public1, secret1)
	image2 := GenerateKeyImage(public2, secret2)

	require.Equal(t, image1, image1Again, "key image must be deterministic")
	require.NotEqual(t, image1, image2, "distinct outputs must not collide")
}

func TestRingSignatureVerify(t *testing.T) {
	const ringSize = 4
	secretIndex := 2

	ring := make([]PublicKey, ringSize)
	var signerSecret SecretKey
	for i := range ring {
		sk, pk, err := GenerateKeyPair()
		require.NoError(t, err)
		ring[i] = pk
		if i == secretIndex {
			signerSecret = sk
		}
	}

	image := GenerateKeyImage(ring[secretIndex], signerSecret)
	prefixHash := Hash{0x01, 0x02, 0x03}

	sig, err := GenerateRingSignature(prefixHash, image, ring, secretIndex, signerSecret)
	require.NoError(t, err)
	require.True(t, VerifyRingSignature(prefixHash, image, ring, sig))

	// tampering with the prefix hash must invalidate the signature
	tamperedHash := Hash{0xff}
	require.False(t, VerifyRingSignature(tamperedHash, image, ring, sig))

	// malformed input never panics, it just fails closed
	require.False(t, VerifyRingSignature(prefixHash, image, ring, sig[:ringSize-1]))
	require.False(t, VerifyRingSignature(prefixHash, KeyImage{}, nil, nil))
}

func TestLongHashDeterministic(t *testing.T) {
	data := []byte("qwc-node long hash fixture")
	h1 := LongHash(data, LongHashV0, 0)
	h2 := LongHash(data, LongHashV0, 0)
	require.Equal(t, h1, h2)

	h3 := LongHash(data, LongHashV1, 0)
	require.NotEqual(t, h1, h3, "distinct variants must diverge")
}

func TestLongHashNeverPanicsOnShortInput(t *testing.T) {
	require.NotPanics(t, func() {
		LongHash(nil, LongHashV1, 0)
		LongHash([]byte{0x01}, LongHashV1, 0)
	})
}

func TestSoftShellParamsStayWithinWindow(t *testing.T) {
	start := softShellParams(0)
	mid := softShellParams(softShellWindow / 2)
	end := softShellParams(softShellWindow - 1)

	require.Greater(t, mid.scratchpadBytes, start.scratchpadBytes)
	require.InDelta(t, start.scratchpadBytes, end.scratchpadBytes, 1024, "window must wrap back to within one block's step of its starting value")
}

func TestChaChaExtraMessageRoundTrip(t *testing.T) {
	_, txPublic, err := GenerateKeyPair()
	require.NoError(t, err)
	viewSecret, _, err := GenerateKeyPair()
	require.NoError(t, err)
	derivation, err := KeyDerivationFrom(txPublic, viewSecret)
	require.NoError(t, err)

	key := ChaChaKeyFromSecret(derivation)
	iv, err := RandomChaChaIV()
	require.NoError(t, err)

	plaintext := []byte("pay me back for lunch")
	ciphertext, err := EncryptExtraMessage(key, iv, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptExtraMessage(key, iv, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}
