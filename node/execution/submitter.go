package execution

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/node/address"
	"github.com/Silent-Builder-x/ArcDNA/node/program"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
	"github.com/Silent-Builder-x/ArcDNA/types/store"
)

// TransactionHandle identifies a confirmed queueing transaction.
type TransactionHandle struct {
	Signature   solana.Signature
	Offset      computation.Offset
	Computation solana.PublicKey
	SubmittedAt time.Time
}

// Submitter queues computation requests on chain and initializes
// computation definitions.
type Submitter struct {
	logger       *zap.Logger
	chain        network.ChainClient
	computations store.ComputationStore
	resolver     *address.Resolver
	payer        solana.PrivateKey
	registrar    CircuitRegistrar
}

func NewSubmitter(
	logger *zap.Logger,
	chain network.ChainClient,
	computations store.ComputationStore,
	resolver *address.Resolver,
	payer solana.PrivateKey,
	registrar CircuitRegistrar,
) *Submitter {
	return &Submitter{
		logger: logger.With(
			zap.String("component", "submitter"),
		),
		chain:        chain,
		computations: computations,
		resolver:     resolver,
		payer:        payer,
		registrar:    registrar,
	}
}

// Submit reserves the request's offset, verifies no computation exists for
// it on chain and sends the queueing transaction. The reservation is
// released when the transaction does not land.
func (s *Submitter) Submit(
	ctx context.Context,
	req *computation.ComputationRequest,
) (*TransactionHandle, error) {
	variant, err := program.LookupVariant(req.Variant)
	if err != nil {
		return nil, errors.Wrap(err, "submit")
	}

	ix, err := program.NewRequestInstruction(
		variant,
		req,
		s.payer.PublicKey(),
	)
	if err != nil {
		submissionsTotal.WithLabelValues(variant.Name, "error").Inc()
		return nil, errors.Wrap(err, "submit")
	}

	timer := prometheus.NewTimer(submitDuration.WithLabelValues(variant.Name))
	defer timer.ObserveDuration()

	addrs := req.Addresses
	logger := s.logger.With(
		zap.Uint64("offset", uint64(req.Offset)),
		zap.Uint32("cluster_offset", addrs.ClusterOffset),
		zap.String("variant", variant.Name),
	)

	record := &store.PendingComputation{
		ClusterOffset:      addrs.ClusterOffset,
		Offset:             uint64(req.Offset),
		Variant:            variant.Name,
		ProgramID:          addrs.MXEProgram,
		ComputationAccount: addrs.Computation,
	}
	if err := s.computations.Reserve(record); err != nil {
		if errors.Is(err, computation.ErrDuplicateOffset) {
			submissionsTotal.WithLabelValues(variant.Name, "duplicate").Inc()
		}
		return nil, errors.Wrap(err, "submit")
	}

	release := func() {
		if err := s.computations.Release(
			addrs.ClusterOffset,
			uint64(req.Offset),
		); err != nil {
			logger.Warn("failed to release reservation", zap.Error(err))
		}
	}

	_, err = s.chain.GetAccountData(ctx, addrs.Computation)
	switch {
	case err == nil:
		release()
		submissionsTotal.WithLabelValues(variant.Name, "duplicate").Inc()
		return nil, errors.Wrapf(
			computation.ErrDuplicateOffset,
			"submit: computation account %s exists",
			addrs.Computation,
		)
	case !errors.Is(err, network.ErrAccountNotFound):
		release()
		submissionsTotal.WithLabelValues(variant.Name, "error").Inc()
		return nil, errors.Wrap(err, "submit")
	}

	logger.Info("queueing computation")
	sig, err := s.chain.SendInstructions(ctx, s.payer, ix)
	if err != nil {
		release()
		submissionsTotal.WithLabelValues(variant.Name, "error").Inc()
		return nil, errors.Wrap(err, "submit")
	}

	if err := s.computations.UpdateStatus(
		addrs.ClusterOffset,
		uint64(req.Offset),
		store.ComputationPending,
		sig,
	); err != nil {
		logger.Warn("failed to record signature", zap.Error(err))
	}

	submissionsTotal.WithLabelValues(variant.Name, "success").Inc()
	logger.Info("computation queued", zap.String("signature", sig.String()))

	return &TransactionHandle{
		Signature:   sig,
		Offset:      req.Offset,
		Computation: addrs.Computation,
		SubmittedAt: time.Now(),
	}, nil
}
