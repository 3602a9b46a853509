package program

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/Silent-Builder-x/ArcDNA/node/address"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
)

// RequestArgs is the typed argument set of one request instruction version.
type RequestArgs interface {
	Offset() uint64
	Segments() int
}

// RequestArgsV1 is the four segment request.
type RequestArgsV1 struct {
	ComputationOffset uint64
	UserShards        [4][32]byte
	TargetShards      [4][32]byte
	PublicKey         [32]byte
	// u128 little-endian
	Nonce [16]byte
}

func (a *RequestArgsV1) Offset() uint64 { return a.ComputationOffset }
func (a *RequestArgsV1) Segments() int { return 4 }

// RequestArgsV2 is the eight segment request.
type RequestArgsV2 struct {
	ComputationOffset uint64
	UserShards        [8][32]byte
	TargetShards      [8][32]byte
	PublicKey         [32]byte
	Nonce             [16]byte
}

func (a *RequestArgsV2) Offset() uint64 { return a.ComputationOffset }
func (a *RequestArgsV2) Segments() int { return 8 }

var (
	_ RequestArgs = (*RequestArgsV1)(nil)
	_ RequestArgs = (*RequestArgsV2)(nil)
)

// NewRequestArgs builds the typed arguments matching the variant's vector
// length.
func NewRequestArgs(
	variant Variant,
	req *computation.ComputationRequest,
) (RequestArgs, error) {
	if err := req.Validate(variant.Segments); err != nil {
		return nil, errors.Wrap(err, "new request args")
	}

	switch variant.Segments {
	case 4:
		args := &RequestArgsV1{
			ComputationOffset: uint64(req.Offset),
			PublicKey:         req.EphemeralPublicKey,
			Nonce:             req.Nonce,
		}
		for i := 0; i < 4; i++ {
			args.UserShards[i] = req.EncryptedUser[i]
			args.TargetShards[i] = req.EncryptedTarget[i]
		}
		return args, nil
	case 8:
		args := &RequestArgsV2{
			ComputationOffset: uint64(req.Offset),
			PublicKey:         req.EphemeralPublicKey,
			Nonce:             req.Nonce,
		}
		for i := 0; i < 8; i++ {
			args.UserShards[i] = req.EncryptedUser[i]
			args.TargetShards[i] = req.EncryptedTarget[i]
		}
		return args, nil
	}

	return nil, errors.Wrapf(
		ErrUnknownVariant,
		"new request args: %d segments",
		variant.Segments,
	)
}

// EncodeInstructionData prefixes the borsh encoded args with the
// instruction discriminator.
func EncodeInstructionData(name string, args any) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	if args == nil {
		return disc[:], nil
	}

	body, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, errors.Wrap(err, "encode instruction data")
	}

	return append(disc[:], body...), nil
}

// DecodeRequestArgs parses request instruction data for the variant.
func DecodeRequestArgs(variant Variant, data []byte) (RequestArgs, error) {
	disc := InstructionDiscriminator(variant.Instruction)
	if len(data) < DiscriminatorSize ||
		Discriminator(data[:DiscriminatorSize]) != disc {
		return nil, errors.Wrap(
			errors.New("discriminator mismatch"),
			"decode request args",
		)
	}

	var args RequestArgs
	switch variant.Segments {
	case 4:
		args = &RequestArgsV1{}
	case 8:
		args = &RequestArgsV2{}
	default:
		return nil, errors.Wrap(ErrUnknownVariant, "decode request args")
	}

	if err := bin.UnmarshalBorsh(args, data[DiscriminatorSize:]); err != nil {
		return nil, errors.Wrap(err, "decode request args")
	}

	return args, nil
}

// NewRequestInstruction builds the instruction that queues the similarity
// computation. Account order follows the program's accounts struct.
func NewRequestInstruction(
	variant Variant,
	req *computation.ComputationRequest,
	payer solana.PublicKey,
) (solana.Instruction, error) {
	args, err := NewRequestArgs(variant, req)
	if err != nil {
		return nil, errors.Wrap(err, "new request instruction")
	}

	data, err := EncodeInstructionData(variant.Instruction, args)
	if err != nil {
		return nil, errors.Wrap(err, "new request instruction")
	}

	a := req.Addresses
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(a.SignPDA, true, false),
		solana.NewAccountMeta(a.MXEAccount, false, false),
		solana.NewAccountMeta(a.Mempool, true, false),
		solana.NewAccountMeta(a.ExecutingPool, true, false),
		solana.NewAccountMeta(a.Computation, true, false),
		solana.NewAccountMeta(a.CompDef, false, false),
		solana.NewAccountMeta(a.Cluster, true, false),
		solana.NewAccountMeta(a.FeePool, true, false),
		solana.NewAccountMeta(a.Clock, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(a.ArciumProgram, false, false),
	}

	return solana.NewInstruction(a.MXEProgram, accounts, data), nil
}

// InitAccounts are the accounts a computation definition init touches.
type InitAccounts struct {
	Payer         solana.PublicKey
	MXEAccount    solana.PublicKey
	CompDef       solana.PublicKey
	LookupTable   solana.PublicKey
	ArciumProgram solana.PublicKey
	MXEProgram    solana.PublicKey
}

// NewInitInstruction builds the computation definition init for the
// variant. The instruction takes no arguments.
func NewInitInstruction(
	variant Variant,
	accounts InitAccounts,
) (solana.Instruction, error) {
	data, err := EncodeInstructionData(variant.InitInstruction, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new init instruction")
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Payer, true, true),
		solana.NewAccountMeta(accounts.MXEAccount, true, false),
		solana.NewAccountMeta(accounts.CompDef, true, false),
		solana.NewAccountMeta(accounts.LookupTable, true, false),
		solana.NewAccountMeta(address.LookupTableProgramID, false, false),
		solana.NewAccountMeta(accounts.ArciumProgram, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(accounts.MXEProgram, metas, data), nil
}
