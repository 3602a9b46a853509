package keys

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	cryptotypes "github.com/Silent-Builder-x/ArcDNA/types/crypto"
	"github.com/Silent-Builder-x/ArcDNA/types/keys"
)

// X25519Key is a Curve25519 Diffie-Hellman key pair. The private half is a
// raw scalar; clamping happens inside curve25519.X25519.
type X25519Key struct {
	privateKey [curve25519.ScalarSize]byte
	publicKey  [curve25519.PointSize]byte
}

// NewX25519Key generates an ephemeral agreement key from the system CSPRNG.
func NewX25519Key() (*X25519Key, error) {
	var priv [curve25519.ScalarSize]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, errors.Wrap(err, "new x25519 key")
	}

	return newX25519Key(priv)
}

// X25519KeyFromBytes restores a key from its 32-byte private scalar and
// derives the public half. Any other length fails with ErrInvalidKeyEncoding.
func X25519KeyFromBytes(data []byte) (*X25519Key, error) {
	if len(data) != curve25519.ScalarSize {
		return nil, errors.Wrap(computation.ErrInvalidKeyEncoding, "from bytes")
	}

	var priv [curve25519.ScalarSize]byte
	copy(priv[:], data)
	return newX25519Key(priv)
}

func newX25519Key(priv [curve25519.ScalarSize]byte) (*X25519Key, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "derive public key")
	}

	key := &X25519Key{privateKey: priv}
	copy(key.publicKey[:], pub)
	return key, nil
}

// AgreeWith implements Agreement.
func (x *X25519Key) AgreeWith(publicKey []byte) (shared []byte, err error) {
	shared, err = DeriveSharedSecret(x.privateKey[:], publicKey)
	return shared, errors.Wrap(err, "agree with")
}

// Private implements Agreement.
func (x *X25519Key) Private() []byte {
	out := make([]byte, len(x.privateKey))
	copy(out, x.privateKey[:])
	return out
}

// Public implements Agreement.
func (x *X25519Key) Public() []byte {
	out := make([]byte, len(x.publicKey))
	copy(out, x.publicKey[:])
	return out
}

// PublicArray returns the public key in the fixed-size form used on the wire.
func (x *X25519Key) PublicArray() [computation.KeySize]byte {
	return x.publicKey
}

// KeyPair exports the key as a typed pair holding copies of both halves.
func (x *X25519Key) KeyPair() keys.KeyPair {
	return keys.KeyPair{
		Type:       cryptotypes.KeyTypeX25519,
		PrivateKey: x.Private(),
		PublicKey:  x.Public(),
	}
}

var _ cryptotypes.Agreement = (*X25519Key)(nil)

// DeriveSharedSecret computes X25519(privateKey, counterpartyPublicKey). A
// counterparty key of the wrong length, or a low-order point yielding the
// all-zero secret, fails with ErrInvalidKeyEncoding.
func DeriveSharedSecret(
	privateKey []byte,
	counterpartyPublicKey []byte,
) ([]byte, error) {
	if len(privateKey) != curve25519.ScalarSize {
		return nil, errors.Wrap(
			computation.ErrInvalidKeyEncoding,
			"derive shared secret",
		)
	}
	if len(counterpartyPublicKey) != curve25519.PointSize {
		return nil, errors.Wrap(
			computation.ErrInvalidKeyEncoding,
			"derive shared secret",
		)
	}

	shared, err := curve25519.X25519(privateKey, counterpartyPublicKey)
	if err != nil {
		// x/crypto reports low-order input points this way
		return nil, errors.Wrap(
			computation.ErrInvalidKeyEncoding,
			"derive shared secret",
		)
	}

	var zero [curve25519.PointSize]byte
	if subtle.ConstantTimeCompare(shared, zero[:]) == 1 {
		return nil, errors.Wrap(
			computation.ErrInvalidKeyEncoding,
			"derive shared secret",
		)
	}

	return shared, nil
}
