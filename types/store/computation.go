package store

import "github.com/gagliardetto/solana-go"

type ComputationStatus uint8

const (
	// ComputationReserved means the offset is claimed locally but the queueing
	// transaction has not been confirmed yet.
	ComputationReserved ComputationStatus = iota
	ComputationPending
	ComputationFinalized
	ComputationFailed
	ComputationTimedOut
)

func (s ComputationStatus) String() string {
	switch s {
	case ComputationReserved:
		return "reserved"
	case ComputationPending:
		return "pending"
	case ComputationFinalized:
		return "finalized"
	case ComputationFailed:
		return "failed"
	case ComputationTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Live reports whether the offset still blocks reuse locally. A timed out
// computation may still finalize on the network; reuse of its offset is
// guarded by the on-chain account check instead.
func (s ComputationStatus) Live() bool {
	return s == ComputationReserved || s == ComputationPending
}

type PendingComputation struct {
	ClusterOffset      uint32
	Offset             uint64
	Variant            string
	ProgramID          solana.PublicKey
	ComputationAccount solana.PublicKey
	Signature          solana.Signature
	Status             ComputationStatus
	CreatedAt          int64
	UpdatedAt          int64
}

type ComputationStore interface {
	// Reserve records a new live computation. It fails if a live record for
	// the same cluster and offset already exists.
	Reserve(computation *PendingComputation) error
	GetComputation(clusterOffset uint32, offset uint64) (
		*PendingComputation,
		error,
	)
	UpdateStatus(
		clusterOffset uint32,
		offset uint64,
		status ComputationStatus,
		signature solana.Signature,
	) error
	Release(clusterOffset uint32, offset uint64) error
	RangeLive(clusterOffset uint32) ([]*PendingComputation, error)
}

type Profile struct {
	Payer         solana.PublicKey
	ClusterOffset uint32
	Endpoint      string
	Requests      uint64
	CreatedAt     int64
	LastUsedAt    int64
}

type ProfileStore interface {
	GetProfile(payer solana.PublicKey, clusterOffset uint32) (*Profile, error)
	PutProfile(profile *Profile) error
}
