package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"io"

	"filippo.io/edwards25519/field"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	cryptotypes "github.com/Silent-Builder-x/ArcDNA/types/crypto"
)

const fieldCipherInfo = "arcdna-field-cipher-v1"

// FieldCipher is a counter-mode cipher over GF(2^255-19). Each plaintext
// value is embedded as a field element and offset by a keystream element
// derived from the cipher key, the nonce and the block index.
type FieldCipher struct {
	key [32]byte
}

var _ cryptotypes.VectorCipher = (*FieldCipher)(nil)

// NewFieldCipher derives the cipher key from a 32-byte shared secret.
func NewFieldCipher(sharedSecret []byte) (*FieldCipher, error) {
	if len(sharedSecret) != computation.KeySize {
		return nil, errors.Wrap(
			computation.ErrInvalidKeyEncoding,
			"new field cipher",
		)
	}

	c := &FieldCipher{}
	kdf := hkdf.New(sha256.New, sharedSecret, nil, []byte(fieldCipherInfo))
	if _, err := io.ReadFull(kdf, c.key[:]); err != nil {
		return nil, errors.Wrap(err, "new field cipher")
	}

	return c, nil
}

func (c *FieldCipher) keystream(nonce computation.Nonce, index uint64) *field.Element {
	var counter [8]byte
	binary.LittleEndian.PutUint64(counter[:], index)

	h := sha3.NewShake256()
	h.Write(c.key[:])
	h.Write(nonce[:])
	h.Write(counter[:])

	var out [32]byte
	h.Read(out[:])

	// SetBytes ignores the top bit and reduces, so this cannot fail
	k, _ := new(field.Element).SetBytes(out[:])
	return k
}

// Encrypt implements VectorCipher.
func (c *FieldCipher) Encrypt(
	plaintext []uint64,
	nonce computation.Nonce,
) ([]computation.CiphertextBlock, error) {
	out := make([]computation.CiphertextBlock, len(plaintext))
	for i, value := range plaintext {
		var encoded [32]byte
		binary.LittleEndian.PutUint64(encoded[:8], value)

		m, err := new(field.Element).SetBytes(encoded[:])
		if err != nil {
			return nil, errors.Wrap(err, "encrypt")
		}

		ct := new(field.Element).Add(m, c.keystream(nonce, uint64(i)))
		copy(out[i][:], ct.Bytes())
	}

	return out, nil
}

// Decrypt implements VectorCipher. Blocks that are not canonical field
// encodings, or that do not decrypt to a 64-bit value, fail with
// ErrDecryptionFailed.
func (c *FieldCipher) Decrypt(
	ciphertext []computation.CiphertextBlock,
	nonce computation.Nonce,
) ([]uint64, error) {
	out := make([]uint64, len(ciphertext))
	for i, block := range ciphertext {
		ct, err := new(field.Element).SetBytes(block[:])
		if err != nil {
			return nil, errors.Wrap(computation.ErrDecryptionFailed, "decrypt")
		}
		if subtle.ConstantTimeCompare(ct.Bytes(), block[:]) != 1 {
			return nil, errors.Wrapf(
				computation.ErrDecryptionFailed,
				"decrypt: non-canonical block %d",
				i,
			)
		}

		m := new(field.Element).Subtract(ct, c.keystream(nonce, uint64(i)))
		encoded := m.Bytes()
		for _, b := range encoded[8:] {
			if b != 0 {
				return nil, errors.Wrapf(
					computation.ErrDecryptionFailed,
					"decrypt: block %d out of range",
					i,
				)
			}
		}

		out[i] = binary.LittleEndian.Uint64(encoded[:8])
	}

	return out, nil
}
