package address

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
)

var testMXEProgram = solana.MustPublicKeyFromBase58(
	"BQbwqV2LhBNcxLjFwQRXfF8UU1fULKdx87nMQ5m3nQLK",
)

func newTestResolver(t *testing.T, clusterOffset uint32) *Resolver {
	r, err := NewResolver(DefaultArciumProgramID, testMXEProgram, clusterOffset)
	require.NoError(t, err)
	return r
}

func TestCompDefOffset(t *testing.T) {
	digest := sha256.Sum256([]byte("compute_dna_similarity"))
	expected := binary.LittleEndian.Uint32(digest[:4])

	offset, err := CompDefOffset("compute_dna_similarity")
	require.NoError(t, err)
	assert.Equal(t, expected, offset)

	wide, err := CompDefOffset("compute_dna_similarity_wide")
	require.NoError(t, err)
	assert.NotEqual(t, offset, wide)

	_, err = CompDefOffset("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrInvalidSeedOrOffset))
}

func TestResolveRequest_Deterministic(t *testing.T) {
	r := newTestResolver(t, 1)

	a, err := r.ResolveRequest(42, "compute_dna_similarity", "dna4")
	require.NoError(t, err)
	b, err := r.ResolveRequest(42, "compute_dna_similarity", "dna4")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// a second resolver with the same inputs agrees
	c, err := newTestResolver(t, 1).ResolveRequest(
		42,
		"compute_dna_similarity",
		"dna4",
	)
	require.NoError(t, err)
	assert.Equal(t, a, c)

	assert.Equal(t, computation.Offset(42), a.ComputationOffset)
	assert.Equal(t, uint32(1), a.ClusterOffset)
	assert.Equal(t, DefaultArciumProgramID, a.ArciumProgram)
	assert.Equal(t, testMXEProgram, a.MXEProgram)
	assert.Equal(t, "dna4", a.InstructionVariant)
}

func TestResolveRequest_OffsetsDiffer(t *testing.T) {
	r := newTestResolver(t, 1)

	a, err := r.ResolveRequest(1, "compute_dna_similarity", "dna4")
	require.NoError(t, err)
	b, err := r.ResolveRequest(2, "compute_dna_similarity", "dna4")
	require.NoError(t, err)

	assert.NotEqual(t, a.Computation, b.Computation)
	// only the computation account depends on the offset
	assert.Equal(t, a.MXEAccount, b.MXEAccount)
	assert.Equal(t, a.Mempool, b.Mempool)
	assert.Equal(t, a.ExecutingPool, b.ExecutingPool)
	assert.Equal(t, a.Cluster, b.Cluster)
	assert.Equal(t, a.CompDef, b.CompDef)
	assert.Equal(t, a.SignPDA, b.SignPDA)
}

func TestResolveRequest_ClusterOffsetsDiffer(t *testing.T) {
	a, err := newTestResolver(t, 1).ResolveRequest(5, "compute_dna_similarity", "dna4")
	require.NoError(t, err)
	b, err := newTestResolver(t, 2).ResolveRequest(5, "compute_dna_similarity", "dna4")
	require.NoError(t, err)

	assert.NotEqual(t, a.Cluster, b.Cluster)
	assert.NotEqual(t, a.Mempool, b.Mempool)
	assert.NotEqual(t, a.ExecutingPool, b.ExecutingPool)
	assert.NotEqual(t, a.Computation, b.Computation)
	assert.Equal(t, a.MXEAccount, b.MXEAccount)
	assert.Equal(t, a.CompDef, b.CompDef)
}

func TestResolveRequest_AddressesAreDistinct(t *testing.T) {
	addrs, err := newTestResolver(t, 0).ResolveRequest(
		7,
		"compute_dna_similarity",
		"dna4",
	)
	require.NoError(t, err)

	seen := map[solana.PublicKey]bool{}
	for _, key := range []solana.PublicKey{
		addrs.MXEAccount,
		addrs.Mempool,
		addrs.ExecutingPool,
		addrs.Cluster,
		addrs.Computation,
		addrs.CompDef,
		addrs.SignPDA,
		addrs.FeePool,
		addrs.Clock,
	} {
		assert.False(t, key.IsZero())
		assert.False(t, seen[key])
		assert.True(t, OffCurve(key))
		seen[key] = true
	}
}

func TestMatchesManualDerivation(t *testing.T) {
	r := newTestResolver(t, 3)

	mxe, err := r.MXEAccount()
	require.NoError(t, err)
	expected, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("MXEAccount"), testMXEProgram[:]},
		DefaultArciumProgramID,
	)
	require.NoError(t, err)
	assert.Equal(t, expected, mxe)

	comp, err := r.Computation(9)
	require.NoError(t, err)
	expected, _, err = solana.FindProgramAddress(
		[][]byte{
			[]byte("ComputationAccount"),
			{3, 0, 0, 0},
			{9, 0, 0, 0, 0, 0, 0, 0},
		},
		DefaultArciumProgramID,
	)
	require.NoError(t, err)
	assert.Equal(t, expected, comp)

	lut, err := r.LookupTable(1234)
	require.NoError(t, err)
	expected, _, err = solana.FindProgramAddress(
		[][]byte{mxe[:], binary.LittleEndian.AppendUint64(nil, 1234)},
		LookupTableProgramID,
	)
	require.NoError(t, err)
	assert.Equal(t, expected, lut)
}

func TestDerive_InvalidInputs(t *testing.T) {
	tests := []struct {
		name    string
		program solana.PublicKey
		seeds   [][]byte
	}{
		{name: "zero program", program: solana.PublicKey{}, seeds: [][]byte{[]byte("a")}},
		{name: "long seed", program: testMXEProgram, seeds: [][]byte{[]byte(strings.Repeat("x", 33))}},
		{name: "too many seeds", program: testMXEProgram, seeds: make([][]byte, 17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Derive(tt.program, tt.seeds...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, computation.ErrInvalidSeedOrOffset))
		})
	}
}

func TestOffCurve_WalletKeyIsOnCurve(t *testing.T) {
	assert.False(t, OffCurve(solana.NewWallet().PublicKey()))
}

func TestNewResolver_ZeroProgram(t *testing.T) {
	_, err := NewResolver(solana.PublicKey{}, testMXEProgram, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrInvalidSeedOrOffset))

	_, err = newTestResolver(t, 0).ResolveRequest(1, "", "dna4")
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrInvalidSeedOrOffset))
}
