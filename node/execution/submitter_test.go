package execution

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Silent-Builder-x/ArcDNA/config"
	"github.com/Silent-Builder-x/ArcDNA/node/address"
	"github.com/Silent-Builder-x/ArcDNA/node/program"
	pstore "github.com/Silent-Builder-x/ArcDNA/node/store"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/mocks"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
	"github.com/Silent-Builder-x/ArcDNA/types/store"
)

var testMXEProgram = solana.MustPublicKeyFromBase58(
	"BQbwqV2LhBNcxLjFwQRXfF8UU1fULKdx87nMQ5m3nQLK",
)

func testResolver(t *testing.T) *address.Resolver {
	r, err := address.NewResolver(
		address.DefaultArciumProgramID,
		testMXEProgram,
		0,
	)
	require.NoError(t, err)
	return r
}

func testComputationStore(t *testing.T) *pstore.PebbleComputationStore {
	db, err := pstore.NewPebbleDB(
		zap.NewNop(),
		&config.DBConfig{InMemoryDONOTUSE: true},
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return pstore.NewPebbleComputationStore(db, zap.NewNop())
}

func testPayer(t *testing.T) solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func testRequest(
	t *testing.T,
	resolver *address.Resolver,
	offset computation.Offset,
) *computation.ComputationRequest {
	variant, err := program.LookupVariant("dna4")
	require.NoError(t, err)

	addrs, err := resolver.ResolveRequest(offset, variant.Circuit, variant.Name)
	require.NoError(t, err)

	req := &computation.ComputationRequest{
		Offset:    offset,
		Variant:   variant.Name,
		Addresses: addrs,
	}
	for i := 0; i < variant.Segments; i++ {
		req.EncryptedUser = append(
			req.EncryptedUser,
			computation.CiphertextBlock{byte(i + 1)},
		)
		req.EncryptedTarget = append(
			req.EncryptedTarget,
			computation.CiphertextBlock{byte(i + 10)},
		)
	}
	req.EphemeralPublicKey[0] = 9
	req.Nonce[0] = 7
	return req
}

func TestSubmit_Success(t *testing.T) {
	resolver := testResolver(t)
	computations := testComputationStore(t)
	chain := &mocks.MockChainClient{}
	req := testRequest(t, resolver, 42)
	sig := solana.Signature{1, 2, 3}

	chain.On("GetAccountData", mock.Anything, req.Addresses.Computation).
		Return(nil, network.ErrAccountNotFound)
	chain.On("SendInstructions", mock.Anything, mock.Anything, mock.Anything).
		Return(sig, nil).Once()

	core, logs := observer.New(zap.InfoLevel)
	s := NewSubmitter(
		zap.New(core),
		chain,
		computations,
		resolver,
		testPayer(t),
		nil,
	)

	handle, err := s.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, sig, handle.Signature)
	assert.Equal(t, computation.Offset(42), handle.Offset)
	assert.Equal(t, req.Addresses.Computation, handle.Computation)

	record, err := computations.GetComputation(0, 42)
	require.NoError(t, err)
	assert.Equal(t, store.ComputationPending, record.Status)
	assert.Equal(t, sig, record.Signature)
	assert.Equal(t, "dna4", record.Variant)

	assert.Equal(t, 1, logs.FilterMessage("computation queued").Len())
	chain.AssertExpectations(t)
}

func TestSubmit_DuplicateOffset(t *testing.T) {
	resolver := testResolver(t)
	computations := testComputationStore(t)
	chain := &mocks.MockChainClient{}
	req := testRequest(t, resolver, 7)

	chain.On("GetAccountData", mock.Anything, req.Addresses.Computation).
		Return(nil, network.ErrAccountNotFound)
	chain.On("SendInstructions", mock.Anything, mock.Anything, mock.Anything).
		Return(solana.Signature{1}, nil).Once()

	s := NewSubmitter(
		zap.NewNop(),
		chain,
		computations,
		resolver,
		testPayer(t),
		nil,
	)

	_, err := s.Submit(context.Background(), req)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrDuplicateOffset))
	chain.AssertNumberOfCalls(t, "SendInstructions", 1)
}

func TestSubmit_DuplicateOffsetOnChain(t *testing.T) {
	resolver := testResolver(t)
	computations := testComputationStore(t)
	chain := &mocks.MockChainClient{}
	req := testRequest(t, resolver, 8)

	chain.On("GetAccountData", mock.Anything, req.Addresses.Computation).
		Return([]byte{1, 2, 3}, nil)

	s := NewSubmitter(
		zap.NewNop(),
		chain,
		computations,
		resolver,
		testPayer(t),
		nil,
	)

	_, err := s.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrDuplicateOffset))
	chain.AssertNotCalled(t, "SendInstructions", mock.Anything, mock.Anything, mock.Anything)

	_, err = computations.GetComputation(0, 8)
	assert.True(t, errors.Is(err, pstore.ErrNotFound))
}

func TestSubmit_SendFailureReleasesOffset(t *testing.T) {
	resolver := testResolver(t)
	computations := testComputationStore(t)
	chain := &mocks.MockChainClient{}
	req := testRequest(t, resolver, 9)

	chain.On("GetAccountData", mock.Anything, req.Addresses.Computation).
		Return(nil, network.ErrAccountNotFound)
	chain.On("SendInstructions", mock.Anything, mock.Anything, mock.Anything).
		Return(solana.Signature{}, errors.New("blockhash not found")).Once()
	chain.On("SendInstructions", mock.Anything, mock.Anything, mock.Anything).
		Return(solana.Signature{4}, nil).Once()

	s := NewSubmitter(
		zap.NewNop(),
		chain,
		computations,
		resolver,
		testPayer(t),
		nil,
	)

	_, err := s.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blockhash not found")

	_, err = computations.GetComputation(0, 9)
	assert.True(t, errors.Is(err, pstore.ErrNotFound))

	handle, err := s.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{4}, handle.Signature)
}

func TestSubmit_InvalidRequest(t *testing.T) {
	resolver := testResolver(t)
	chain := &mocks.MockChainClient{}
	s := NewSubmitter(
		zap.NewNop(),
		chain,
		testComputationStore(t),
		resolver,
		testPayer(t),
		nil,
	)

	tests := []struct {
		name   string
		mutate func(req *computation.ComputationRequest)
	}{
		{
			name: "unknown variant",
			mutate: func(req *computation.ComputationRequest) {
				req.Variant = "dna16"
			},
		},
		{
			name: "short vector",
			mutate: func(req *computation.ComputationRequest) {
				req.EncryptedTarget = req.EncryptedTarget[:3]
			},
		},
		{
			name: "addresses for another offset",
			mutate: func(req *computation.ComputationRequest) {
				req.Offset = 11
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t, resolver, 10)
			tt.mutate(req)
			_, err := s.Submit(context.Background(), req)
			require.Error(t, err)
		})
	}

	chain.AssertNotCalled(t, "SendInstructions", mock.Anything, mock.Anything, mock.Anything)
}
