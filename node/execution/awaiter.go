package execution

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/node/program"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/events"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
	"github.com/Silent-Builder-x/ArcDNA/types/store"
	"github.com/Silent-Builder-x/ArcDNA/utils/retry"
)

// defaultLookupPolicy bounds the transaction account lookup for one event.
// Nodes may not serve a transaction until shortly after its logs notification.
var defaultLookupPolicy = retry.Policy{
	MaxAttempts: 5,
	Delay:       200 * time.Millisecond,
}

// Awaiter waits for the callback of a queued computation. Waiting is split
// into windows; each window ends early when a correlated event arrives.
type Awaiter struct {
	logger       *zap.Logger
	distributor  events.EventDistributor
	chain        network.ChainClient
	computations store.ComputationStore
	policy       retry.Policy
	lookup       retry.Policy
	nextID       atomic.Uint64
}

func NewAwaiter(
	logger *zap.Logger,
	distributor events.EventDistributor,
	chain network.ChainClient,
	computations store.ComputationStore,
	policy retry.Policy,
) *Awaiter {
	return &Awaiter{
		logger:       logger.With(zap.String("component", "awaiter")),
		distributor:  distributor,
		chain:        chain,
		computations: computations,
		policy:       policy,
		lookup:       defaultLookupPolicy,
	}
}

// Subscribe opens a listener for the computation at offset. It must be
// called before the request is submitted.
func (a *Awaiter) Subscribe(offset computation.Offset) *Subscription {
	id := fmt.Sprintf("await-%d-%d", uint64(offset), a.nextID.Add(1))
	return &Subscription{
		id:          id,
		offset:      offset,
		events:      a.distributor.Subscribe(id),
		distributor: a.distributor,
	}
}

// AwaitResult blocks until the computation behind req finalizes, fails or
// the attempt budget is spent. The subscription is closed on return.
func (a *Awaiter) AwaitResult(
	ctx context.Context,
	sub *Subscription,
	req *computation.ComputationRequest,
) (*computation.ComputationResult, error) {
	defer sub.Close()

	if req.Addresses == nil {
		return nil, errors.Wrap(
			errors.New("missing addresses"),
			"await result",
		)
	}

	inflightComputations.Inc()
	defer inflightComputations.Dec()
	start := time.Now()

	addrs := req.Addresses
	logger := a.logger.With(
		zap.Uint64("offset", uint64(req.Offset)),
		zap.String("computation", addrs.Computation.String()),
	)

	window := a.policy.Delay
	result, err := retry.Do(
		ctx,
		retry.Policy{MaxAttempts: a.policy.MaxAttempts},
		func(ctx context.Context, attempt int) (
			*computation.ComputationResult,
			bool,
			error,
		) {
			logger.Debug("waiting for callback", zap.Int("attempt", attempt))
			return a.awaitWindow(ctx, sub, addrs.Computation, window, logger)
		},
	)
	awaitDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, computation.ErrComputationFailed):
		resultsTotal.WithLabelValues("failed").Inc()
		a.setStatus(addrs, req.Offset, store.ComputationFailed, logger)
		return nil, errors.Wrap(err, "await result")
	case err != nil:
		resultsTotal.WithLabelValues("cancelled").Inc()
		return nil, errors.Wrap(err, "await result")
	case result.TimedOut:
		resultsTotal.WithLabelValues("timed_out").Inc()
		a.setStatus(addrs, req.Offset, store.ComputationTimedOut, logger)
		logger.Warn(
			"computation did not finalize",
			zap.Int("attempts", result.Attempts),
		)
		return nil, errors.Wrapf(
			computation.ErrComputationTimedOut,
			"await result: %d attempts",
			result.Attempts,
		)
	}

	resultsTotal.WithLabelValues("finalized").Inc()
	a.setStatus(addrs, req.Offset, store.ComputationFinalized, logger)
	logger.Info(
		"computation finalized",
		zap.String("signature", result.Value.Signature.String()),
		zap.Uint64("slot", result.Value.Slot),
	)
	return result.Value, nil
}

func (a *Awaiter) awaitWindow(
	ctx context.Context,
	sub *Subscription,
	target solana.PublicKey,
	window time.Duration,
	logger *zap.Logger,
) (*computation.ComputationResult, bool, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-timer.C:
			return nil, false, nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil, false, retry.Permanent(
					errors.New("event subscription closed"),
				)
			}

			result, done, err := a.handleEvent(ctx, &event, target, logger)
			if done || err != nil {
				return result, done, err
			}
		}
	}
}

// handleEvent correlates one event with the awaited computation. Only
// failures and transactions carrying a match event are checked against the
// chain.
func (a *Awaiter) handleEvent(
	ctx context.Context,
	event *events.ProgramEvent,
	target solana.PublicKey,
	logger *zap.Logger,
) (*computation.ComputationResult, bool, error) {
	var match []byte
	if event.Type == events.ProgramEventEmitted {
		for _, payload := range event.Payloads {
			if program.IsDnaMatchEvent(payload) {
				match = payload
				break
			}
		}
		if match == nil {
			return nil, false, nil
		}
	}

	accounts, err := a.transactionAccounts(ctx, event.Signature, logger)
	if err != nil {
		return nil, false, err
	}
	if accounts == nil {
		return nil, false, nil
	}
	if !containsAccount(accounts, target) {
		return nil, false, nil
	}

	if event.Type == events.ProgramEventFailed {
		logger.Warn(
			"computation callback failed",
			zap.String("signature", event.Signature.String()),
			zap.Any("err", event.Err),
		)
		return nil, false, retry.Permanent(errors.Wrapf(
			computation.ErrComputationFailed,
			"transaction %s",
			event.Signature,
		))
	}

	decoded, err := program.DecodeDnaMatchEvent(match)
	if err != nil {
		return nil, false, retry.Permanent(errors.Wrap(
			computation.ErrComputationFailed,
			err.Error(),
		))
	}

	result := decoded.Result()
	result.Signature = event.Signature
	result.Slot = event.Slot
	return result, true, nil
}

// transactionAccounts loads the accounts of signature, retrying transient
// lookup failures. It returns nil accounts when the lookup budget is spent and
// an error only when ctx ends.
func (a *Awaiter) transactionAccounts(
	ctx context.Context,
	signature solana.Signature,
	logger *zap.Logger,
) ([]solana.PublicKey, error) {
	result, err := retry.Do(
		ctx,
		a.lookup,
		func(ctx context.Context, attempt int) ([]solana.PublicKey, bool, error) {
			accounts, err := a.chain.GetTransactionAccounts(ctx, signature)
			if err != nil {
				logger.Debug(
					"transaction accounts not available",
					zap.String("signature", signature.String()),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return nil, false, err
			}
			return accounts, true, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if result.TimedOut {
		lookupFailuresTotal.Inc()
		logger.Warn(
			"could not load transaction accounts",
			zap.String("signature", signature.String()),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.LastErr),
		)
		return nil, nil
	}

	return result.Value, nil
}

func (a *Awaiter) setStatus(
	addrs *computation.Addresses,
	offset computation.Offset,
	status store.ComputationStatus,
	logger *zap.Logger,
) {
	if a.computations == nil {
		return
	}
	if err := a.computations.UpdateStatus(
		addrs.ClusterOffset,
		uint64(offset),
		status,
		solana.Signature{},
	); err != nil {
		logger.Warn(
			"failed to record computation status",
			zap.Stringer("status", status),
			zap.Error(err),
		)
	}
}

func containsAccount(accounts []solana.PublicKey, target solana.PublicKey) bool {
	for _, account := range accounts {
		if account.Equals(target) {
			return true
		}
	}
	return false
}
