package crypto

import "github.com/Silent-Builder-x/ArcDNA/types/computation"

type KeyType int

const (
	KeyTypeX25519 KeyType = iota
	KeyTypeEd25519
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeX25519:
		return "x25519"
	case KeyTypeEd25519:
		return "ed25519"
	}
	return "unknown"
}

type Agreement interface {
	Private() []byte
	Public() []byte
	AgreeWith(publicKey []byte) (shared []byte, err error)
}

// VectorCipher encrypts ordered vectors of unsigned integers into fixed-size
// blocks under a shared secret. Callers own nonce uniqueness.
type VectorCipher interface {
	Encrypt(
		plaintext []uint64,
		nonce computation.Nonce,
	) ([]computation.CiphertextBlock, error)
	Decrypt(
		ciphertext []computation.CiphertextBlock,
		nonce computation.Nonce,
	) ([]uint64, error)
}
