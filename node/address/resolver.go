// Package address derives every program-owned account a request touches.
// Nothing here performs I/O.
package address

import (
	"crypto/sha256"
	"encoding/binary"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
)

var (
	// LookupTableProgramID owns address lookup tables.
	LookupTableProgramID = solana.MustPublicKeyFromBase58(
		"AddressLookupTab1e1111111111111111111111111",
	)
	// DefaultArciumProgramID is the Arcium program on localnet and devnet.
	DefaultArciumProgramID = solana.MustPublicKeyFromBase58(
		"Arcj82pX7HxYKLR92qvgZUAd7vGS1k4hQvAFcPATFdEQ",
	)
)

var (
	seedMXEAccount    = []byte("MXEAccount")
	seedMempool       = []byte("Mempool")
	seedExecpool      = []byte("Execpool")
	seedCluster       = []byte("Cluster")
	seedComputation   = []byte("ComputationAccount")
	seedCompDef       = []byte("ComputationDefinitionAccount")
	seedFeePool       = []byte("FeePool")
	seedClock         = []byte("ClockAccount")
	seedSignerAccount = []byte("ArciumSignerAccount")
)

// Derive finds the program-derived address for seeds under programID.
func Derive(programID solana.PublicKey, seeds ...[]byte) (
	solana.PublicKey,
	uint8,
	error,
) {
	if programID.IsZero() {
		return solana.PublicKey{}, 0, errors.Wrap(
			computation.ErrInvalidSeedOrOffset,
			"derive: zero program id",
		)
	}
	if len(seeds) > maxSeeds {
		return solana.PublicKey{}, 0, errors.Wrapf(
			computation.ErrInvalidSeedOrOffset,
			"derive: %d seeds",
			len(seeds),
		)
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return solana.PublicKey{}, 0, errors.Wrapf(
				computation.ErrInvalidSeedOrOffset,
				"derive: seed of %d bytes",
				len(seed),
			)
		}
	}

	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, errors.Wrap(
			computation.ErrInvalidSeedOrOffset,
			err.Error(),
		)
	}

	return addr, bump, nil
}

// OffCurve reports whether key is not a valid ed25519 point, which holds for
// every program-derived address.
func OffCurve(key solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err != nil
}

// CompDefOffset maps a circuit label to its computation definition offset:
// the first four bytes of SHA-256(label), little-endian.
func CompDefOffset(circuitLabel string) (uint32, error) {
	if circuitLabel == "" {
		return 0, errors.Wrap(
			computation.ErrInvalidSeedOrOffset,
			"comp def offset: empty label",
		)
	}

	digest := sha256.Sum256([]byte(circuitLabel))
	return binary.LittleEndian.Uint32(digest[:4]), nil
}

func u32LE(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func u64LE(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// Resolver derives addresses for one MXE program on one cluster.
type Resolver struct {
	arciumProgram solana.PublicKey
	mxeProgram    solana.PublicKey
	clusterOffset uint32
}

func NewResolver(
	arciumProgram solana.PublicKey,
	mxeProgram solana.PublicKey,
	clusterOffset uint32,
) (*Resolver, error) {
	if arciumProgram.IsZero() || mxeProgram.IsZero() {
		return nil, errors.Wrap(
			computation.ErrInvalidSeedOrOffset,
			"new resolver: zero program id",
		)
	}

	return &Resolver{
		arciumProgram: arciumProgram,
		mxeProgram:    mxeProgram,
		clusterOffset: clusterOffset,
	}, nil
}

func (r *Resolver) ArciumProgram() solana.PublicKey { return r.arciumProgram }
func (r *Resolver) MXEProgram() solana.PublicKey { return r.mxeProgram }
func (r *Resolver) ClusterOffset() uint32 { return r.clusterOffset }

func (r *Resolver) arcium(seeds ...[]byte) (solana.PublicKey, error) {
	addr, _, err := Derive(r.arciumProgram, seeds...)
	return addr, err
}

func (r *Resolver) MXEAccount() (solana.PublicKey, error) {
	return r.arcium(seedMXEAccount, r.mxeProgram[:])
}

func (r *Resolver) Mempool() (solana.PublicKey, error) {
	return r.arcium(seedMempool, u32LE(r.clusterOffset))
}

func (r *Resolver) ExecutingPool() (solana.PublicKey, error) {
	return r.arcium(seedExecpool, u32LE(r.clusterOffset))
}

func (r *Resolver) Cluster() (solana.PublicKey, error) {
	return r.arcium(seedCluster, u32LE(r.clusterOffset))
}

func (r *Resolver) Computation(offset computation.Offset) (
	solana.PublicKey,
	error,
) {
	return r.arcium(seedComputation, u32LE(r.clusterOffset), offset.Bytes())
}

// CompDef returns the computation definition account for a circuit and its
// offset.
func (r *Resolver) CompDef(circuitLabel string) (
	solana.PublicKey,
	uint32,
	error,
) {
	offset, err := CompDefOffset(circuitLabel)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}

	addr, err := r.arcium(seedCompDef, r.mxeProgram[:], u32LE(offset))
	return addr, offset, err
}

func (r *Resolver) FeePool() (solana.PublicKey, error) {
	return r.arcium(seedFeePool)
}

func (r *Resolver) Clock() (solana.PublicKey, error) {
	return r.arcium(seedClock)
}

// SignPDA is owned by the MXE program, not by Arcium.
func (r *Resolver) SignPDA() (solana.PublicKey, error) {
	addr, _, err := Derive(r.mxeProgram, seedSignerAccount)
	return addr, err
}

// LookupTable returns the MXE's address lookup table created at
// lutOffsetSlot.
func (r *Resolver) LookupTable(lutOffsetSlot uint64) (
	solana.PublicKey,
	error,
) {
	mxe, err := r.MXEAccount()
	if err != nil {
		return solana.PublicKey{}, err
	}

	addr, _, err := Derive(LookupTableProgramID, mxe[:], u64LE(lutOffsetSlot))
	return addr, err
}

// ResolveRequest derives the full account set for one request.
func (r *Resolver) ResolveRequest(
	offset computation.Offset,
	circuitLabel string,
	variant string,
) (*computation.Addresses, error) {
	addrs := &computation.Addresses{
		ArciumProgram:      r.arciumProgram,
		MXEProgram:         r.mxeProgram,
		ComputationOffset:  offset,
		ClusterOffset:      r.clusterOffset,
		CircuitLabel:       circuitLabel,
		InstructionVariant: variant,
	}

	var err error
	if addrs.CompDef, addrs.CompDefOffset, err = r.CompDef(circuitLabel); err != nil {
		return nil, errors.Wrap(err, "resolve request")
	}

	steps := []struct {
		dst  *solana.PublicKey
		from func() (solana.PublicKey, error)
	}{
		{&addrs.MXEAccount, r.MXEAccount},
		{&addrs.Mempool, r.Mempool},
		{&addrs.ExecutingPool, r.ExecutingPool},
		{&addrs.Cluster, r.Cluster},
		{&addrs.FeePool, r.FeePool},
		{&addrs.Clock, r.Clock},
		{&addrs.SignPDA, r.SignPDA},
		{&addrs.Computation, func() (solana.PublicKey, error) {
			return r.Computation(offset)
		}},
	}
	for _, step := range steps {
		if *step.dst, err = step.from(); err != nil {
			return nil, errors.Wrap(err, "resolve request")
		}
	}

	return addrs, nil
}
