package program

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

var (
	ErrMXEKeyNotSet     = errors.New("mxe x25519 key not set")
	ErrUnknownMXELayout = errors.New("unknown mxe account layout")

	mxeAccountDiscriminator = AccountDiscriminator("MXEAccount")
)

// MXEAccount holds the fields of the MXE account the client reads. The x25519
// key is absent until the cluster has completed key generation.
type MXEAccount struct {
	Cluster       *uint32
	X25519PubKey  *[32]byte
	LutOffsetSlot uint64
}

// DecodeMXEAccount parses account data. Trailing fields are ignored.
func DecodeMXEAccount(data []byte) (*MXEAccount, error) {
	if len(data) < DiscriminatorSize ||
		Discriminator(data[:DiscriminatorSize]) != mxeAccountDiscriminator {
		return nil, errors.Wrap(ErrUnknownMXELayout, "decode mxe account")
	}

	dec := bin.NewBorshDecoder(data[DiscriminatorSize:])
	account := &MXEAccount{}

	hasCluster, err := dec.ReadBool()
	if err != nil {
		return nil, errors.Wrap(err, "decode mxe account")
	}
	if hasCluster {
		cluster, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, errors.Wrap(err, "decode mxe account")
		}
		account.Cluster = &cluster
	}

	hasKey, err := dec.ReadBool()
	if err != nil {
		return nil, errors.Wrap(err, "decode mxe account")
	}
	if hasKey {
		raw, err := dec.ReadNBytes(32)
		if err != nil {
			return nil, errors.Wrap(err, "decode mxe account")
		}
		var key [32]byte
		copy(key[:], raw)
		account.X25519PubKey = &key
	}

	account.LutOffsetSlot, err = dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, errors.Wrap(err, "decode mxe account")
	}

	return account, nil
}

// EncodeMXEAccount is the inverse of DecodeMXEAccount.
func EncodeMXEAccount(account *MXEAccount) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := enc.WriteBytes(mxeAccountDiscriminator[:], false); err != nil {
		return nil, errors.Wrap(err, "encode mxe account")
	}

	if err := enc.WriteBool(account.Cluster != nil); err != nil {
		return nil, errors.Wrap(err, "encode mxe account")
	}
	if account.Cluster != nil {
		if err := enc.WriteUint32(*account.Cluster, binary.LittleEndian); err != nil {
			return nil, errors.Wrap(err, "encode mxe account")
		}
	}

	if err := enc.WriteBool(account.X25519PubKey != nil); err != nil {
		return nil, errors.Wrap(err, "encode mxe account")
	}
	if account.X25519PubKey != nil {
		if err := enc.WriteBytes(account.X25519PubKey[:], false); err != nil {
			return nil, errors.Wrap(err, "encode mxe account")
		}
	}

	if err := enc.WriteUint64(account.LutOffsetSlot, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "encode mxe account")
	}

	return buf.Bytes(), nil
}

// X25519Key returns the MXE's agreement key or ErrMXEKeyNotSet.
func (m *MXEAccount) X25519Key() ([]byte, error) {
	if m.X25519PubKey == nil {
		return nil, ErrMXEKeyNotSet
	}
	key := make([]byte, 32)
	copy(key, m.X25519PubKey[:])
	return key, nil
}
