package network

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountInUse is returned when a transaction tried to create an account
	// that already exists.
	ErrAccountInUse = errors.New("account already in use")
)

// TransactionError reports a transaction that landed but failed on chain.
type TransactionError struct {
	Signature solana.Signature
	Err       any
}

func (e *TransactionError) Error() string {
	return "transaction " + e.Signature.String() + " failed"
}

// ProgramLog is one log notification for a transaction mentioning a program.
type ProgramLog struct {
	Signature solana.Signature
	Slot      uint64
	// Err is non-nil when the transaction failed.
	Err  any
	Logs []string
}

// Failed reports whether the logged transaction failed.
func (p *ProgramLog) Failed() bool {
	return p.Err != nil
}

type LogSubscription interface {
	Recv(ctx context.Context) (*ProgramLog, error)
	Unsubscribe()
}

// ChainClient is the narrow view of the ledger the client depends on.
type ChainClient interface {
	GetAccountData(
		ctx context.Context,
		address solana.PublicKey,
	) ([]byte, error)
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	// SendInstructions signs with the payer, submits and waits for the
	// configured commitment.
	SendInstructions(
		ctx context.Context,
		payer solana.PrivateKey,
		instructions ...solana.Instruction,
	) (solana.Signature, error)
	// GetTransactionAccounts returns every account a transaction referenced,
	// including addresses loaded from lookup tables.
	GetTransactionAccounts(
		ctx context.Context,
		signature solana.Signature,
	) ([]solana.PublicKey, error)
	SubscribeLogs(
		ctx context.Context,
		mentions solana.PublicKey,
	) (LogSubscription, error)
	Close() error
}
