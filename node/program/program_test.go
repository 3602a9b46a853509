package program

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silent-Builder-x/ArcDNA/node/address"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
)

func TestDiscriminators(t *testing.T) {
	digest := sha256.Sum256([]byte("global:request_genomic_match"))
	d := InstructionDiscriminator("request_genomic_match")
	assert.Equal(t, digest[:8], d[:])

	digest = sha256.Sum256([]byte("event:DnaMatchEvent"))
	e := EventDiscriminator("DnaMatchEvent")
	assert.Equal(t, digest[:8], e[:])

	assert.NotEqual(t, InstructionDiscriminator("init_dna_config"), d)
}

func TestLookupVariant(t *testing.T) {
	v, err := LookupVariant("dna4")
	require.NoError(t, err)
	assert.Equal(t, 4, v.Segments)
	assert.Equal(t, "request_genomic_match", v.Instruction)
	assert.Equal(t, "compute_dna_similarity", v.Circuit)
	assert.Equal(t, "init_dna_config", v.InitInstruction)

	v, err = LookupVariant("dna8")
	require.NoError(t, err)
	assert.Equal(t, 8, v.Segments)

	_, err = LookupVariant("dna16")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVariant))

	all := Variants()
	require.Len(t, all, 2)
	assert.Equal(t, "dna4", all[0].Name)
	assert.Equal(t, "dna8", all[1].Name)
}

func testRequest(t *testing.T, variant Variant) *computation.ComputationRequest {
	r, err := address.NewResolver(
		address.DefaultArciumProgramID,
		solana.MustPublicKeyFromBase58("BQbwqV2LhBNcxLjFwQRXfF8UU1fULKdx87nMQ5m3nQLK"),
		1,
	)
	require.NoError(t, err)

	addrs, err := r.ResolveRequest(77, variant.Circuit, variant.Name)
	require.NoError(t, err)

	req := &computation.ComputationRequest{
		Offset:    77,
		Variant:   variant.Name,
		Addresses: addrs,
	}
	for i := 0; i < variant.Segments; i++ {
		var u, tg computation.CiphertextBlock
		u[0] = byte(i + 1)
		tg[0] = byte(i + 100)
		req.EncryptedUser = append(req.EncryptedUser, u)
		req.EncryptedTarget = append(req.EncryptedTarget, tg)
	}
	req.EphemeralPublicKey[0] = 0xaa
	req.Nonce[0] = 0x01
	req.Nonce[15] = 0x80
	return req
}

func TestRequestInstruction_LayoutV1(t *testing.T) {
	variant, err := LookupVariant("dna4")
	require.NoError(t, err)
	req := testRequest(t, variant)
	payer := solana.NewWallet().PublicKey()

	ix, err := NewRequestInstruction(variant, req, payer)
	require.NoError(t, err)

	assert.Equal(t, req.Addresses.MXEProgram, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	// disc + offset + 2*4*32 + pubkey + nonce
	require.Len(t, data, 8+8+256+32+16)

	disc := InstructionDiscriminator("request_genomic_match")
	assert.Equal(t, disc[:], data[:8])
	assert.Equal(t, uint64(77), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, byte(1), data[16])
	assert.Equal(t, byte(100), data[16+128])
	assert.Equal(t, byte(0xaa), data[16+256])
	assert.Equal(t, req.Nonce[:], data[16+256+32:])

	accounts := ix.Accounts()
	require.Len(t, accounts, 12)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, req.Addresses.Computation, accounts[5].PublicKey)
	assert.True(t, accounts[5].IsWritable)
	assert.Equal(t, req.Addresses.CompDef, accounts[6].PublicKey)
	assert.False(t, accounts[6].IsWritable)
	assert.Equal(t, solana.SystemProgramID, accounts[10].PublicKey)
	assert.Equal(t, req.Addresses.ArciumProgram, accounts[11].PublicKey)

	args, err := DecodeRequestArgs(variant, data)
	require.NoError(t, err)
	v1, ok := args.(*RequestArgsV1)
	require.True(t, ok)
	assert.Equal(t, uint64(77), v1.Offset())
	assert.Equal(t, [32]byte(req.EncryptedTarget[3]), v1.TargetShards[3])
	assert.Equal(t, [16]byte(req.Nonce), v1.Nonce)
}

func TestRequestInstruction_LayoutV2(t *testing.T) {
	variant, err := LookupVariant("dna8")
	require.NoError(t, err)
	req := testRequest(t, variant)

	ix, err := NewRequestInstruction(variant, req, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+8+512+32+16)

	args, err := DecodeRequestArgs(variant, data)
	require.NoError(t, err)
	v2, ok := args.(*RequestArgsV2)
	require.True(t, ok)
	assert.Equal(t, 8, v2.Segments())
	assert.Equal(t, [32]byte(req.EncryptedUser[7]), v2.UserShards[7])

	// v1 decoding rejects v2 data
	v1, err := LookupVariant("dna4")
	require.NoError(t, err)
	_, err = DecodeRequestArgs(v1, data)
	require.Error(t, err)
}

func TestRequestInstruction_SegmentMismatch(t *testing.T) {
	dna4, err := LookupVariant("dna4")
	require.NoError(t, err)
	dna8, err := LookupVariant("dna8")
	require.NoError(t, err)

	req := testRequest(t, dna4)
	_, err = NewRequestInstruction(dna8, req, solana.NewWallet().PublicKey())
	require.Error(t, err)
}

func TestInitInstruction(t *testing.T) {
	variant, err := LookupVariant("dna4")
	require.NoError(t, err)

	accounts := InitAccounts{
		Payer:         solana.NewWallet().PublicKey(),
		MXEAccount:    solana.NewWallet().PublicKey(),
		CompDef:       solana.NewWallet().PublicKey(),
		LookupTable:   solana.NewWallet().PublicKey(),
		ArciumProgram: address.DefaultArciumProgramID,
		MXEProgram:    solana.NewWallet().PublicKey(),
	}
	ix, err := NewInitInstruction(variant, accounts)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	disc := InstructionDiscriminator("init_dna_config")
	assert.Equal(t, disc[:], data)

	metas := ix.Accounts()
	require.Len(t, metas, 7)
	assert.Equal(t, accounts.CompDef, metas[2].PublicKey)
	assert.Equal(t, address.LookupTableProgramID, metas[4].PublicKey)
	assert.Equal(t, accounts.MXEProgram, ix.ProgramID())
}

func TestDnaMatchEvent_LogRoundTrip(t *testing.T) {
	event := &DnaMatchEvent{}
	event.EncryptedScore[0] = 3
	event.EncryptedIsRelative[31] = 1
	event.Nonce[5] = 9

	line, err := EncodeDnaMatchEvent(event)
	require.NoError(t, err)

	logs := []string{
		"Program log: Instruction: ComputeDnaSimilarityCallback",
		"Program data: !!!not-base64",
		line,
		"Program log: Confidential DNA Matching Completed via MXE.",
	}
	payloads := EventPayloads(logs)
	require.Len(t, payloads, 1)
	require.True(t, IsDnaMatchEvent(payloads[0]))

	decoded, err := DecodeDnaMatchEvent(payloads[0])
	require.NoError(t, err)
	assert.Equal(t, event, decoded)

	result := decoded.Result()
	require.Len(t, result.EncryptedOutputs, 2)
	assert.Equal(t, byte(3), result.EncryptedOutputs[0][0])
	assert.Equal(t, byte(1), result.EncryptedOutputs[1][31])
	assert.Equal(t, byte(9), result.Nonce[5])
}

func TestDecodeDnaMatchEvent_Rejects(t *testing.T) {
	other := EventDiscriminator("OtherEvent")
	_, err := DecodeDnaMatchEvent(append(other[:], make([]byte, 80)...))
	require.Error(t, err)

	disc := EventDiscriminator(DnaMatchEventName)
	_, err = DecodeDnaMatchEvent(append(disc[:], make([]byte, 10)...))
	require.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte{1, 2})
	assert.Empty(t, EventPayloads([]string{"Program data: " + short}))
}

func TestMXEAccount_RoundTrip(t *testing.T) {
	cluster := uint32(1)
	key := [32]byte{1, 2, 3}
	account := &MXEAccount{
		Cluster:       &cluster,
		X25519PubKey:  &key,
		LutOffsetSlot: 123456,
	}

	data, err := EncodeMXEAccount(account)
	require.NoError(t, err)

	// trailing fields are tolerated
	decoded, err := DecodeMXEAccount(append(data, 0xde, 0xad))
	require.NoError(t, err)
	assert.Equal(t, account, decoded)

	pub, err := decoded.X25519Key()
	require.NoError(t, err)
	assert.Equal(t, key[:], pub)
}

func TestMXEAccount_KeyNotSet(t *testing.T) {
	data, err := EncodeMXEAccount(&MXEAccount{LutOffsetSlot: 5})
	require.NoError(t, err)

	decoded, err := DecodeMXEAccount(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.Cluster)
	assert.Equal(t, uint64(5), decoded.LutOffsetSlot)

	_, err = decoded.X25519Key()
	assert.True(t, errors.Is(err, ErrMXEKeyNotSet))
}

func TestMXEAccount_UnknownLayout(t *testing.T) {
	_, err := DecodeMXEAccount(make([]byte, 64))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMXELayout))

	data, err := EncodeMXEAccount(&MXEAccount{})
	require.NoError(t, err)
	_, err = DecodeMXEAccount(data[:len(data)-3])
	require.Error(t, err)
}
