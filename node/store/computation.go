package store

import (
	"encoding/binary"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/store"
)

var ErrNotFound = errors.New("record not found")

var _ store.ComputationStore = (*PebbleComputationStore)(nil)

// PebbleComputationStore tracks computation offsets this client has queued so
// an offset is never reused while its computation is live.
type PebbleComputationStore struct {
	db     store.KVDB
	logger *zap.Logger
	// serializes the check and write in Reserve
	mu  sync.Mutex
	now func() time.Time
}

func NewPebbleComputationStore(
	db store.KVDB,
	logger *zap.Logger,
) *PebbleComputationStore {
	return &PebbleComputationStore{
		db:     db,
		logger: logger.Named("computation_store"),
		now:    time.Now,
	}
}

func computationPrefix(clusterOffset uint32) []byte {
	key := []byte{COMPUTATION, COMPUTATION_BY_OFFSET}
	key = binary.BigEndian.AppendUint32(key, clusterOffset)
	return key
}

func computationKey(clusterOffset uint32, offset uint64) []byte {
	key := computationPrefix(clusterOffset)
	key = binary.BigEndian.AppendUint64(key, offset)
	return key
}

func (p *PebbleComputationStore) GetComputation(
	clusterOffset uint32,
	offset uint64,
) (*store.PendingComputation, error) {
	data, closer, err := p.db.Get(computationKey(clusterOffset, offset))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get computation")
	}

	copied := slices.Clone(data)
	closer.Close()

	record, err := decodePendingComputation(copied)
	return record, errors.Wrap(err, "get computation")
}

func (p *PebbleComputationStore) Reserve(
	record *store.PendingComputation,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.GetComputation(record.ClusterOffset, record.Offset)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "reserve")
	}
	if existing != nil && existing.Status.Live() {
		return errors.Wrapf(
			computation.ErrDuplicateOffset,
			"reserve: offset %d is %s",
			record.Offset,
			existing.Status,
		)
	}

	now := p.now().UnixMilli()
	reserved := *record
	reserved.Status = store.ComputationReserved
	reserved.CreatedAt = now
	reserved.UpdatedAt = now

	txn := p.db.NewBatch(false)
	if err := txn.Set(
		computationKey(record.ClusterOffset, record.Offset),
		encodePendingComputation(&reserved),
	); err != nil {
		txn.Abort()
		return errors.Wrap(err, "reserve")
	}

	if err := txn.Commit(); err != nil {
		return errors.Wrap(err, "reserve")
	}

	*record = reserved
	p.logger.Debug(
		"reserved computation offset",
		zap.Uint32("cluster_offset", record.ClusterOffset),
		zap.Uint64("offset", record.Offset),
	)
	return nil
}

func (p *PebbleComputationStore) UpdateStatus(
	clusterOffset uint32,
	offset uint64,
	status store.ComputationStatus,
	signature solana.Signature,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, err := p.GetComputation(clusterOffset, offset)
	if err != nil {
		return errors.Wrap(err, "update status")
	}

	record.Status = status
	if signature != (solana.Signature{}) {
		record.Signature = signature
	}
	record.UpdatedAt = p.now().UnixMilli()

	return errors.Wrap(
		p.db.Set(
			computationKey(clusterOffset, offset),
			encodePendingComputation(record),
		),
		"update status",
	)
}

// Release drops a reservation whose transaction never landed.
func (p *PebbleComputationStore) Release(
	clusterOffset uint32,
	offset uint64,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return errors.Wrap(
		p.db.Delete(computationKey(clusterOffset, offset)),
		"release",
	)
}

func (p *PebbleComputationStore) RangeLive(clusterOffset uint32) (
	[]*store.PendingComputation,
	error,
) {
	prefix := computationPrefix(clusterOffset)
	iter, err := p.db.NewIter(prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, errors.Wrap(err, "range live")
	}
	defer iter.Close()

	var records []*store.PendingComputation
	for iter.First(); iter.Valid(); iter.Next() {
		record, err := decodePendingComputation(slices.Clone(iter.Value()))
		if err != nil {
			return nil, errors.Wrap(err, "range live")
		}
		if record.Status.Live() {
			records = append(records, record)
		}
	}

	return records, nil
}

// record layout: cluster(4) offset(8) status(1) program(32) computation(32)
// signature(64) created(8) updated(8) variantLen(2) variant
const pendingComputationFixedLen = 4 + 8 + 1 + 32 + 32 + 64 + 8 + 8 + 2

func encodePendingComputation(record *store.PendingComputation) []byte {
	data := make([]byte, 0, pendingComputationFixedLen+len(record.Variant))
	data = binary.BigEndian.AppendUint32(data, record.ClusterOffset)
	data = binary.BigEndian.AppendUint64(data, record.Offset)
	data = append(data, byte(record.Status))
	data = append(data, record.ProgramID[:]...)
	data = append(data, record.ComputationAccount[:]...)
	data = append(data, record.Signature[:]...)
	data = binary.BigEndian.AppendUint64(data, uint64(record.CreatedAt))
	data = binary.BigEndian.AppendUint64(data, uint64(record.UpdatedAt))
	data = binary.BigEndian.AppendUint16(data, uint16(len(record.Variant)))
	data = append(data, record.Variant...)
	return data
}

func decodePendingComputation(data []byte) (*store.PendingComputation, error) {
	if len(data) < pendingComputationFixedLen {
		return nil, errors.New("invalid computation record: too short")
	}

	record := &store.PendingComputation{}
	offset := 0
	record.ClusterOffset = binary.BigEndian.Uint32(data[offset:])
	offset += 4
	record.Offset = binary.BigEndian.Uint64(data[offset:])
	offset += 8
	record.Status = store.ComputationStatus(data[offset])
	offset += 1
	copy(record.ProgramID[:], data[offset:offset+32])
	offset += 32
	copy(record.ComputationAccount[:], data[offset:offset+32])
	offset += 32
	copy(record.Signature[:], data[offset:offset+64])
	offset += 64
	record.CreatedAt = int64(binary.BigEndian.Uint64(data[offset:]))
	offset += 8
	record.UpdatedAt = int64(binary.BigEndian.Uint64(data[offset:]))
	offset += 8

	variantLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if offset+variantLen > len(data) {
		return nil, errors.New("invalid variant length")
	}
	record.Variant = string(data[offset : offset+variantLen])

	return record, nil
}
