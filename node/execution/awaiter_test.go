package execution

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/node/program"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/events"
	"github.com/Silent-Builder-x/ArcDNA/types/mocks"
	"github.com/Silent-Builder-x/ArcDNA/types/store"
	"github.com/Silent-Builder-x/ArcDNA/utils/retry"
)

type awaiterFixture struct {
	awaiter      *Awaiter
	chain        *mocks.MockChainClient
	distributor  *mocks.MockEventDistributor
	computations store.ComputationStore
	events       chan events.ProgramEvent
	req          *computation.ComputationRequest
}

func newAwaiterFixture(t *testing.T, policy retry.Policy) *awaiterFixture {
	resolver := testResolver(t)
	computations := testComputationStore(t)
	req := testRequest(t, resolver, 21)
	require.NoError(t, computations.Reserve(&store.PendingComputation{
		ClusterOffset:      0,
		Offset:             21,
		Variant:            "dna4",
		ComputationAccount: req.Addresses.Computation,
	}))

	ch := make(chan events.ProgramEvent, 10)
	distributor := &mocks.MockEventDistributor{}
	distributor.On("Subscribe", mock.Anything).
		Return((<-chan events.ProgramEvent)(ch))
	distributor.On("Unsubscribe", mock.Anything).Return().Once()

	chain := &mocks.MockChainClient{}
	return &awaiterFixture{
		awaiter: NewAwaiter(
			zap.NewNop(),
			distributor,
			chain,
			computations,
			policy,
		),
		chain:        chain,
		distributor:  distributor,
		computations: computations,
		events:       ch,
		req:          req,
	}
}

func matchPayload(t *testing.T, score byte) []byte {
	line, err := program.EncodeDnaMatchEvent(&program.DnaMatchEvent{
		EncryptedScore:      [32]byte{score},
		EncryptedIsRelative: [32]byte{1},
		Nonce:               [16]byte{3},
	})
	require.NoError(t, err)

	payloads := program.EventPayloads([]string{line})
	require.Len(t, payloads, 1)
	return payloads[0]
}

func TestAwaitResult_Finalized(t *testing.T) {
	f := newAwaiterFixture(t, retry.Policy{MaxAttempts: 5, Delay: time.Second})
	other := solana.Signature{9}
	mine := solana.Signature{8}

	f.chain.On("GetTransactionAccounts", mock.Anything, other).
		Return([]solana.PublicKey{solana.SystemProgramID}, nil)
	f.chain.On("GetTransactionAccounts", mock.Anything, mine).
		Return([]solana.PublicKey{solana.SystemProgramID, f.req.Addresses.Computation}, nil)

	sub := f.awaiter.Subscribe(f.req.Offset)

	// no match event, never correlated
	f.events <- events.ProgramEvent{
		Type:      events.ProgramEventEmitted,
		Signature: solana.Signature{7},
	}
	// another client's callback
	f.events <- events.ProgramEvent{
		Type:      events.ProgramEventEmitted,
		Signature: other,
		Payloads:  [][]byte{matchPayload(t, 1)},
	}
	f.events <- events.ProgramEvent{
		Type:      events.ProgramEventEmitted,
		Signature: mine,
		Slot:      55,
		Payloads:  [][]byte{matchPayload(t, 2)},
	}

	result, err := f.awaiter.AwaitResult(context.Background(), sub, f.req)
	require.NoError(t, err)
	require.Len(t, result.EncryptedOutputs, 2)
	assert.Equal(t, byte(2), result.EncryptedOutputs[0][0])
	assert.Equal(t, computation.Nonce{3}, result.Nonce)
	assert.Equal(t, mine, result.Signature)
	assert.Equal(t, uint64(55), result.Slot)

	record, err := f.computations.GetComputation(0, 21)
	require.NoError(t, err)
	assert.Equal(t, store.ComputationFinalized, record.Status)

	f.chain.AssertNotCalled(t, "GetTransactionAccounts", mock.Anything, solana.Signature{7})
	f.distributor.AssertCalled(t, "Unsubscribe", sub.ID())
}

func TestAwaitResult_Failed(t *testing.T) {
	f := newAwaiterFixture(t, retry.Policy{MaxAttempts: 5, Delay: time.Second})
	sig := solana.Signature{6}
	f.chain.On("GetTransactionAccounts", mock.Anything, sig).
		Return([]solana.PublicKey{f.req.Addresses.Computation}, nil)

	sub := f.awaiter.Subscribe(f.req.Offset)
	f.events <- events.ProgramEvent{
		Type:      events.ProgramEventFailed,
		Signature: sig,
		Err:       map[string]any{"InstructionError": []any{0, "Custom"}},
	}

	_, err := f.awaiter.AwaitResult(context.Background(), sub, f.req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrComputationFailed))

	record, err := f.computations.GetComputation(0, 21)
	require.NoError(t, err)
	assert.Equal(t, store.ComputationFailed, record.Status)
	f.distributor.AssertCalled(t, "Unsubscribe", sub.ID())
}

func TestAwaitResult_TimedOut(t *testing.T) {
	f := newAwaiterFixture(
		t,
		retry.Policy{MaxAttempts: 3, Delay: 10 * time.Millisecond},
	)

	sub := f.awaiter.Subscribe(f.req.Offset)
	start := time.Now()
	_, err := f.awaiter.AwaitResult(context.Background(), sub, f.req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrComputationTimedOut))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	record, err := f.computations.GetComputation(0, 21)
	require.NoError(t, err)
	assert.Equal(t, store.ComputationTimedOut, record.Status)
	f.distributor.AssertCalled(t, "Unsubscribe", sub.ID())
}

func TestAwaitResult_Cancelled(t *testing.T) {
	f := newAwaiterFixture(t, retry.Policy{MaxAttempts: 100, Delay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	sub := f.awaiter.Subscribe(f.req.Offset)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.awaiter.AwaitResult(ctx, sub, f.req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	record, err := f.computations.GetComputation(0, 21)
	require.NoError(t, err)
	assert.Equal(t, store.ComputationReserved, record.Status)
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	f := newAwaiterFixture(t, retry.Policy{MaxAttempts: 1})
	sub := f.awaiter.Subscribe(1)
	other := f.awaiter.Subscribe(1)
	assert.NotEqual(t, sub.ID(), other.ID())

	sub.Close()
	sub.Close()
	f.distributor.AssertNumberOfCalls(t, "Unsubscribe", 1)
}

func TestAwaitResult_TransactionLookupRetried(t *testing.T) {
	f := newAwaiterFixture(
		t,
		retry.Policy{MaxAttempts: 3, Delay: 100 * time.Millisecond},
	)
	f.awaiter.lookup = retry.Policy{MaxAttempts: 5, Delay: 5 * time.Millisecond}
	mine := solana.Signature{8}

	// the node has not indexed the callback yet on the first lookup
	f.chain.On("GetTransactionAccounts", mock.Anything, mine).
		Return(nil, errors.New("not found")).Once()
	f.chain.On("GetTransactionAccounts", mock.Anything, mine).
		Return([]solana.PublicKey{f.req.Addresses.Computation}, nil)

	sub := f.awaiter.Subscribe(f.req.Offset)
	f.events <- events.ProgramEvent{
		Type:      events.ProgramEventEmitted,
		Signature: mine,
		Payloads:  [][]byte{matchPayload(t, 4)},
	}

	result, err := f.awaiter.AwaitResult(context.Background(), sub, f.req)
	require.NoError(t, err)
	assert.Equal(t, mine, result.Signature)
	assert.Equal(t, byte(4), result.EncryptedOutputs[0][0])
	f.chain.AssertNumberOfCalls(t, "GetTransactionAccounts", 2)

	record, err := f.computations.GetComputation(0, 21)
	require.NoError(t, err)
	assert.Equal(t, store.ComputationFinalized, record.Status)
}

func TestAwaitResult_TransactionLookupExhausted(t *testing.T) {
	f := newAwaiterFixture(
		t,
		retry.Policy{MaxAttempts: 2, Delay: 20 * time.Millisecond},
	)
	f.awaiter.lookup = retry.Policy{MaxAttempts: 3, Delay: time.Millisecond}
	sig := solana.Signature{8}

	f.chain.On("GetTransactionAccounts", mock.Anything, sig).
		Return(nil, errors.New("not found"))

	sub := f.awaiter.Subscribe(f.req.Offset)
	f.events <- events.ProgramEvent{
		Type:      events.ProgramEventEmitted,
		Signature: sig,
		Payloads:  [][]byte{matchPayload(t, 4)},
	}

	_, err := f.awaiter.AwaitResult(context.Background(), sub, f.req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, computation.ErrComputationTimedOut))
	f.chain.AssertNumberOfCalls(t, "GetTransactionAccounts", 3)
}
