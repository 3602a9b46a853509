package keys

import (
	"encoding/hex"

	"github.com/Silent-Builder-x/ArcDNA/types/crypto"
)

// KeyPair is an ephemeral agreement key pair, created per request and never
// persisted.
type KeyPair struct {
	Type       crypto.KeyType
	PrivateKey ByteString
	PublicKey  ByteString
}

type ByteString []byte

func (b ByteString) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *ByteString) UnmarshalText(text []byte) error {
	value, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}

	*b = value
	return nil
}

func (b ByteString) String() string {
	return hex.EncodeToString(b)
}
