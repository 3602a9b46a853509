package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
)

func newTestCipher(t *testing.T) *FieldCipher {
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	c, err := NewFieldCipher(secret)
	require.NoError(t, err)
	return c
}

func randomNonce(t *testing.T) computation.Nonce {
	var nonce computation.Nonce
	_, err := rand.Read(nonce[:])
	require.NoError(t, err)
	return nonce
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	vectors := [][]uint64{
		{},
		{0},
		{100, 200, 300, 400},
		{100, 200, 300, 400, 100, 200, 300, 999},
		{^uint64(0), 1, 0, 1 << 63},
	}

	for _, plaintext := range vectors {
		nonce := randomNonce(t)
		ct, err := c.Encrypt(plaintext, nonce)
		require.NoError(t, err)
		require.Len(t, ct, len(plaintext))

		pt, err := c.Decrypt(ct, nonce)
		require.NoError(t, err)
		assert.Equal(t, plaintext, pt)
	}
}

func TestFieldCipher_SharedSecretDeterminesKey(t *testing.T) {
	secret := make([]byte, 32)
	secret[0] = 7
	a, err := NewFieldCipher(secret)
	require.NoError(t, err)
	b, err := NewFieldCipher(secret)
	require.NoError(t, err)

	nonce := randomNonce(t)
	ct, err := a.Encrypt([]uint64{1, 2, 3}, nonce)
	require.NoError(t, err)

	pt, err := b.Decrypt(ct, nonce)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, pt)
}

func TestFieldCipher_NonceChangesCiphertext(t *testing.T) {
	c := newTestCipher(t)
	plaintext := []uint64{5, 5, 5, 5}

	ct1, err := c.Encrypt(plaintext, randomNonce(t))
	require.NoError(t, err)
	ct2, err := c.Encrypt(plaintext, randomNonce(t))
	require.NoError(t, err)
	assert.NotEqual(t, ct1, ct2)

	// equal plaintexts at different positions do not repeat
	assert.NotEqual(t, ct1[0], ct1[1])
}

func TestFieldCipher_TamperedBlockFails(t *testing.T) {
	c := newTestCipher(t)
	nonce := randomNonce(t)

	ct, err := c.Encrypt([]uint64{3, 1}, nonce)
	require.NoError(t, err)

	tampered := make([]computation.CiphertextBlock, len(ct))
	copy(tampered, ct)
	tampered[0][20] ^= 0x01

	_, err = c.Decrypt(tampered, nonce)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrDecryptionFailed))
}

func TestFieldCipher_WrongNonceFails(t *testing.T) {
	c := newTestCipher(t)
	nonce := randomNonce(t)

	ct, err := c.Encrypt([]uint64{42, 43}, nonce)
	require.NoError(t, err)

	other := nonce
	other[0] ^= 0xff
	_, err = c.Decrypt(ct, other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrDecryptionFailed))
}

func TestFieldCipher_WrongKeyFails(t *testing.T) {
	a := newTestCipher(t)
	b := newTestCipher(t)
	nonce := randomNonce(t)

	ct, err := a.Encrypt([]uint64{9}, nonce)
	require.NoError(t, err)

	_, err = b.Decrypt(ct, nonce)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrDecryptionFailed))
}

func TestFieldCipher_NonCanonicalBlockFails(t *testing.T) {
	c := newTestCipher(t)

	// p = 2^255 - 19 encodes as ed ff .. ff 7f, which is not canonical
	var block computation.CiphertextBlock
	for i := range block {
		block[i] = 0xff
	}
	block[0] = 0xed
	block[31] = 0x7f

	_, err := c.Decrypt([]computation.CiphertextBlock{block}, randomNonce(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrDecryptionFailed))

	var highBit computation.CiphertextBlock
	highBit[31] = 0x80
	_, err = c.Decrypt([]computation.CiphertextBlock{highBit}, randomNonce(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrDecryptionFailed))
}

func TestNewFieldCipher_BadSecret(t *testing.T) {
	_, err := NewFieldCipher(make([]byte, 16))
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrInvalidKeyEncoding))
}
