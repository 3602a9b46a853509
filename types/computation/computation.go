package computation

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	ErrInvalidKeyEncoding  = errors.New("invalid key encoding")
	ErrDecryptionFailed    = errors.New("decryption failed")
	ErrInvalidSeedOrOffset = errors.New("invalid seed or offset")
	ErrDuplicateOffset     = errors.New("duplicate offset")
	ErrComputationTimedOut = errors.New("computation timed out")
	ErrComputationFailed   = errors.New("computation failed")
	// ErrSetupAlreadyDone signals success by another path. It is swallowed by
	// setup operations and never surfaced to callers.
	ErrSetupAlreadyDone = errors.New("setup already done")
)

const (
	BlockSize = 32
	NonceSize = 16
	KeySize   = 32
)

// CiphertextBlock is the canonical little-endian encoding of one encrypted
// field element.
type CiphertextBlock [BlockSize]byte

// Nonce is sent alongside ciphertext so the counterparty can decrypt.
type Nonce [NonceSize]byte

// Uint128LE returns the nonce as the little-endian u128 the program expects,
// split into low and high words.
func (n Nonce) Uint128LE() (lo uint64, hi uint64) {
	return binary.LittleEndian.Uint64(n[:8]), binary.LittleEndian.Uint64(n[8:])
}

func (n Nonce) String() string {
	return hex.EncodeToString(n[:])
}

// Offset identifies one pending computation instance on a cluster.
type Offset uint64

// Bytes returns the little-endian seed encoding of the offset.
func (o Offset) Bytes() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(o))
	return b
}

func (o Offset) String() string {
	return hex.EncodeToString(o.Bytes())
}

// Addresses is the full set of accounts addressing one request.
type Addresses struct {
	MXEAccount         solana.PublicKey
	Mempool            solana.PublicKey
	ExecutingPool      solana.PublicKey
	Cluster            solana.PublicKey
	Computation        solana.PublicKey
	CompDef            solana.PublicKey
	SignPDA            solana.PublicKey
	FeePool            solana.PublicKey
	Clock              solana.PublicKey
	ArciumProgram      solana.PublicKey
	MXEProgram         solana.PublicKey
	ComputationOffset  Offset
	ClusterOffset      uint32
	CompDefOffset      uint32
	CircuitLabel       string
	InstructionVariant string
}

// ComputationRequest carries one encrypted similarity request. It is
// terminal once finalized or failed.
type ComputationRequest struct {
	Offset             Offset
	Variant            string
	EncryptedUser      []CiphertextBlock
	EncryptedTarget    []CiphertextBlock
	EphemeralPublicKey [KeySize]byte
	Nonce              Nonce
	Addresses          *Addresses
}

// Validate checks the request is internally consistent before it is put on
// the wire.
func (r *ComputationRequest) Validate(segments int) error {
	if r.Addresses == nil {
		return errors.Wrap(
			errors.New("missing addresses"),
			"validate",
		)
	}
	if len(r.EncryptedUser) != segments || len(r.EncryptedTarget) != segments {
		return errors.Wrap(
			errors.Errorf(
				"expected %d segments, got user=%d target=%d",
				segments,
				len(r.EncryptedUser),
				len(r.EncryptedTarget),
			),
			"validate",
		)
	}
	if r.Addresses.ComputationOffset != r.Offset {
		return errors.Wrap(
			errors.New("addresses resolved for a different offset"),
			"validate",
		)
	}
	return nil
}

// ComputationResult is produced once per finalized request.
type ComputationResult struct {
	EncryptedOutputs []CiphertextBlock
	Nonce            Nonce
	Signature        solana.Signature
	Slot             uint64
}

// MatchResult is the decrypted similarity output.
type MatchResult struct {
	Score      uint64
	IsRelative uint64
	Segments   int
}

// Related reports whether the circuit flagged the pair as related.
func (m *MatchResult) Related() bool {
	return m.IsRelative == 1
}
