package store

import (
	"encoding/binary"
	"slices"

	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/types/store"
)

var _ store.ProfileStore = (*PebbleProfileStore)(nil)

type PebbleProfileStore struct {
	db     store.KVDB
	logger *zap.Logger
}

func NewPebbleProfileStore(
	db store.KVDB,
	logger *zap.Logger,
) *PebbleProfileStore {
	return &PebbleProfileStore{
		db:     db,
		logger: logger.Named("profile_store"),
	}
}

func profileKey(payer solana.PublicKey, clusterOffset uint32) []byte {
	key := []byte{PROFILE, PROFILE_BY_PAYER}
	key = append(key, payer[:]...)
	key = binary.BigEndian.AppendUint32(key, clusterOffset)
	return key
}

func (p *PebbleProfileStore) GetProfile(
	payer solana.PublicKey,
	clusterOffset uint32,
) (*store.Profile, error) {
	data, closer, err := p.db.Get(profileKey(payer, clusterOffset))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get profile")
	}

	copied := slices.Clone(data)
	closer.Close()

	profile, err := decodeProfile(copied)
	return profile, errors.Wrap(err, "get profile")
}

func (p *PebbleProfileStore) PutProfile(profile *store.Profile) error {
	return errors.Wrap(
		p.db.Set(
			profileKey(profile.Payer, profile.ClusterOffset),
			encodeProfile(profile),
		),
		"put profile",
	)
}

const profileFixedLen = 32 + 4 + 8 + 8 + 8 + 2

func encodeProfile(profile *store.Profile) []byte {
	data := make([]byte, 0, profileFixedLen+len(profile.Endpoint))
	data = append(data, profile.Payer[:]...)
	data = binary.BigEndian.AppendUint32(data, profile.ClusterOffset)
	data = binary.BigEndian.AppendUint64(data, profile.Requests)
	data = binary.BigEndian.AppendUint64(data, uint64(profile.CreatedAt))
	data = binary.BigEndian.AppendUint64(data, uint64(profile.LastUsedAt))
	data = binary.BigEndian.AppendUint16(data, uint16(len(profile.Endpoint)))
	data = append(data, profile.Endpoint...)
	return data
}

func decodeProfile(data []byte) (*store.Profile, error) {
	if len(data) < profileFixedLen {
		return nil, errors.New("invalid profile record: too short")
	}

	profile := &store.Profile{}
	offset := 0
	copy(profile.Payer[:], data[offset:offset+32])
	offset += 32
	profile.ClusterOffset = binary.BigEndian.Uint32(data[offset:])
	offset += 4
	profile.Requests = binary.BigEndian.Uint64(data[offset:])
	offset += 8
	profile.CreatedAt = int64(binary.BigEndian.Uint64(data[offset:]))
	offset += 8
	profile.LastUsedAt = int64(binary.BigEndian.Uint64(data[offset:]))
	offset += 8

	endpointLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if offset+endpointLen > len(data) {
		return nil, errors.New("invalid endpoint length")
	}
	profile.Endpoint = string(data[offset : offset+endpointLen])

	return profile, nil
}
