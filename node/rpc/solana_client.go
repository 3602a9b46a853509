package rpc

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/config"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
	"github.com/Silent-Builder-x/ArcDNA/utils/retry"
)

var defaultConfirmPolicy = retry.Policy{
	MaxAttempts: 60,
	Delay:       500 * time.Millisecond,
}

// SolanaClient implements ChainClient over JSON-RPC and the websocket
// subscription API.
type SolanaClient struct {
	rpc           *solanarpc.Client
	wsEndpoint    string
	commitment    solanarpc.CommitmentType
	skipPreflight bool
	confirm       retry.Policy
	logger        *zap.Logger

	wsMu sync.Mutex
	ws   *ws.Client
}

var _ network.ChainClient = (*SolanaClient)(nil)

func NewSolanaClient(
	cfg *config.NetworkConfig,
	logger *zap.Logger,
) *SolanaClient {
	skip := true
	if cfg.SkipPreflight != nil {
		skip = *cfg.SkipPreflight
	}

	return &SolanaClient{
		rpc:           solanarpc.New(cfg.RPCEndpoint),
		wsEndpoint:    cfg.WSEndpoint,
		commitment:    solanarpc.CommitmentType(cfg.Commitment),
		skipPreflight: skip,
		confirm:       defaultConfirmPolicy,
		logger:        logger.Named("solana_client"),
	}
}

// GetAccountData implements ChainClient.
func (c *SolanaClient) GetAccountData(
	ctx context.Context,
	address solana.PublicKey,
) ([]byte, error) {
	out, err := c.rpc.GetAccountInfoWithOpts(
		ctx,
		address,
		&solanarpc.GetAccountInfoOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingBase64,
		},
	)
	if err != nil {
		if errors.Is(err, solanarpc.ErrNotFound) {
			return nil, network.ErrAccountNotFound
		}
		return nil, errors.Wrap(err, "get account data")
	}
	if out == nil || out.Value == nil {
		return nil, network.ErrAccountNotFound
	}

	return out.Value.Data.GetBinary(), nil
}

// GetBalance implements ChainClient.
func (c *SolanaClient) GetBalance(
	ctx context.Context,
	address solana.PublicKey,
) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, address, c.commitment)
	if err != nil {
		return 0, errors.Wrap(err, "get balance")
	}

	return out.Value, nil
}

// SendInstructions implements ChainClient.
func (c *SolanaClient) SendInstructions(
	ctx context.Context,
	payer solana.PrivateKey,
	instructions ...solana.Instruction,
) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "send instructions")
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(payer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "send instructions")
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, errors.Wrap(err, "send instructions")
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
		SkipPreflight:       c.skipPreflight,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		if isAccountInUse(err.Error()) {
			return solana.Signature{}, errors.Wrap(
				network.ErrAccountInUse,
				"send instructions",
			)
		}
		return solana.Signature{}, errors.Wrap(err, "send instructions")
	}

	c.logger.Debug("transaction sent", zap.String("signature", sig.String()))

	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return sig, errors.Wrap(err, "send instructions")
	}

	return sig, nil
}

func (c *SolanaClient) awaitConfirmation(
	ctx context.Context,
	sig solana.Signature,
) error {
	result, err := retry.Do(
		ctx,
		c.confirm,
		func(ctx context.Context, attempt int) (any, bool, error) {
			out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				return nil, false, err
			}
			if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
				return nil, false, nil
			}

			status := out.Value[0]
			if status.Err != nil {
				return nil, false, retry.Permanent(c.failure(ctx, sig, status.Err))
			}

			return nil, c.reached(status.ConfirmationStatus), nil
		},
	)
	if err != nil {
		return err
	}
	if result.TimedOut {
		return errors.Errorf(
			"transaction %s not confirmed after %d attempts",
			sig,
			result.Attempts,
		)
	}

	return nil
}

func (c *SolanaClient) reached(status solanarpc.ConfirmationStatusType) bool {
	switch c.commitment {
	case solanarpc.CommitmentFinalized:
		return status == solanarpc.ConfirmationStatusFinalized
	case solanarpc.CommitmentProcessed:
		return status != ""
	default:
		return status == solanarpc.ConfirmationStatusConfirmed ||
			status == solanarpc.ConfirmationStatusFinalized
	}
}

// failure maps a landed but failed transaction to an error, recognising
// account creation collisions from the transaction logs.
func (c *SolanaClient) failure(
	ctx context.Context,
	sig solana.Signature,
	txErr any,
) error {
	out, err := c.rpc.GetTransaction(ctx, sig, c.transactionOpts())
	if err == nil && out != nil && out.Meta != nil {
		for _, line := range out.Meta.LogMessages {
			if isAccountInUse(line) {
				return network.ErrAccountInUse
			}
		}
	}

	return &network.TransactionError{Signature: sig, Err: txErr}
}

func (c *SolanaClient) transactionOpts() *solanarpc.GetTransactionOpts {
	version := uint64(0)
	commitment := c.commitment
	if commitment == solanarpc.CommitmentProcessed {
		commitment = solanarpc.CommitmentConfirmed
	}

	return &solanarpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &version,
	}
}

// GetTransactionAccounts implements ChainClient.
func (c *SolanaClient) GetTransactionAccounts(
	ctx context.Context,
	signature solana.Signature,
) ([]solana.PublicKey, error) {
	out, err := c.rpc.GetTransaction(ctx, signature, c.transactionOpts())
	if err != nil {
		return nil, errors.Wrap(err, "get transaction accounts")
	}
	if out == nil || out.Transaction == nil {
		return nil, errors.Wrap(
			network.ErrAccountNotFound,
			"get transaction accounts",
		)
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, errors.Wrap(err, "get transaction accounts")
	}

	accounts := append([]solana.PublicKey{}, tx.Message.AccountKeys...)
	if out.Meta != nil {
		accounts = append(accounts, out.Meta.LoadedAddresses.Writable...)
		accounts = append(accounts, out.Meta.LoadedAddresses.ReadOnly...)
	}

	return accounts, nil
}

func (c *SolanaClient) wsClient(ctx context.Context) (*ws.Client, error) {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws != nil {
		return c.ws, nil
	}

	client, err := ws.Connect(ctx, c.wsEndpoint)
	if err != nil {
		return nil, err
	}

	c.ws = client
	return client, nil
}

// SubscribeLogs implements ChainClient.
func (c *SolanaClient) SubscribeLogs(
	ctx context.Context,
	mentions solana.PublicKey,
) (network.LogSubscription, error) {
	client, err := c.wsClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe logs")
	}

	sub, err := client.LogsSubscribeMentions(mentions, c.commitment)
	if err != nil {
		// drop the connection so the next attempt redials
		c.wsMu.Lock()
		if c.ws == client {
			c.ws.Close()
			c.ws = nil
		}
		c.wsMu.Unlock()
		return nil, errors.Wrap(err, "subscribe logs")
	}

	return &logSubscription{sub: sub}, nil
}

// Close implements ChainClient.
func (c *SolanaClient) Close() error {
	c.wsMu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.wsMu.Unlock()

	return c.rpc.Close()
}

type logSubscription struct {
	sub  *ws.LogSubscription
	once sync.Once
}

func (l *logSubscription) Recv(ctx context.Context) (*network.ProgramLog, error) {
	got, err := l.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}

	return &network.ProgramLog{
		Signature: got.Value.Signature,
		Slot:      got.Context.Slot,
		Err:       got.Value.Err,
		Logs:      got.Value.Logs,
	}, nil
}

func (l *logSubscription) Unsubscribe() {
	l.once.Do(l.sub.Unsubscribe)
}

func isAccountInUse(message string) bool {
	return strings.Contains(message, "already in use")
}
