package tests

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/node/address"
	"github.com/Silent-Builder-x/ArcDNA/node/crypto"
	"github.com/Silent-Builder-x/ArcDNA/node/keys"
	"github.com/Silent-Builder-x/ArcDNA/node/program"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
)

// DefaultRelativeThreshold is the number of equal segments at which the
// fake cluster flags a pair as related.
const DefaultRelativeThreshold = 3

var ErrTransactionNotFound = errors.New("transaction not found")

type FakeChainOption func(*FakeChain)

// WithDroppedResults makes the cluster accept requests but never call back.
func WithDroppedResults() FakeChainOption {
	return func(f *FakeChain) { f.dropResults = true }
}

// WithFailedCallbacks makes every callback transaction fail on chain.
func WithFailedCallbacks() FakeChainOption {
	return func(f *FakeChain) { f.failCallbacks = true }
}

func WithRelativeThreshold(threshold uint64) FakeChainOption {
	return func(f *FakeChain) { f.threshold = threshold }
}

// WithoutMXEKey leaves the MXE account without an x25519 key, as it is
// before the cluster finishes key generation.
func WithoutMXEKey() FakeChainOption {
	return func(f *FakeChain) { f.withholdKey = true }
}

// FakeChain is an in-memory ledger and MPC cluster for one MXE program. It
// executes request instructions by decrypting the inputs with the MXE key,
// scoring them and emitting the encrypted result the way the program's
// callback does.
type FakeChain struct {
	logger   *zap.Logger
	resolver *address.Resolver
	mxeKey   *keys.X25519Key
	lutSlot  uint64

	mu           sync.Mutex
	accounts     map[solana.PublicKey][]byte
	balances     map[solana.PublicKey]uint64
	transactions map[solana.Signature][]solana.PublicKey
	subs         map[uint64]*fakeLogSubscription
	nextSub      uint64
	slot         uint64
	requests     int
	callbacks    sync.WaitGroup

	dropResults   bool
	failCallbacks bool
	withholdKey   bool
	threshold     uint64
}

var _ network.ChainClient = (*FakeChain)(nil)

func NewFakeChain(
	logger *zap.Logger,
	resolver *address.Resolver,
	opts ...FakeChainOption,
) (*FakeChain, error) {
	mxeKey, err := keys.NewX25519Key()
	if err != nil {
		return nil, errors.Wrap(err, "new fake chain")
	}

	f := &FakeChain{
		logger:       logger.Named("fake_chain"),
		resolver:     resolver,
		mxeKey:       mxeKey,
		lutSlot:      4242,
		accounts:     map[solana.PublicKey][]byte{},
		balances:     map[solana.PublicKey]uint64{},
		transactions: map[solana.Signature][]solana.PublicKey{},
		subs:         map[uint64]*fakeLogSubscription{},
		threshold:    DefaultRelativeThreshold,
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.writeMXEAccount(!f.withholdKey); err != nil {
		return nil, errors.Wrap(err, "new fake chain")
	}

	return f, nil
}

func (f *FakeChain) writeMXEAccount(withKey bool) error {
	cluster := f.resolver.ClusterOffset()
	account := &program.MXEAccount{
		Cluster:       &cluster,
		LutOffsetSlot: f.lutSlot,
	}
	if withKey {
		key := f.mxeKey.PublicArray()
		account.X25519PubKey = &key
	}

	data, err := program.EncodeMXEAccount(account)
	if err != nil {
		return err
	}

	mxe, err := f.resolver.MXEAccount()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.accounts[mxe] = data
	f.mu.Unlock()
	return nil
}

// PublishMXEKey completes key generation for a chain created WithoutMXEKey.
func (f *FakeChain) PublishMXEKey() error {
	return f.writeMXEAccount(true)
}

func (f *FakeChain) MXEPublicKey() []byte {
	return f.mxeKey.Public()
}

func (f *FakeChain) Airdrop(address solana.PublicKey, lamports uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] += lamports
}

// Requests returns how many request instructions the chain accepted.
func (f *FakeChain) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// SetAccount writes raw account data, used to simulate accounts created by
// other clients.
func (f *FakeChain) SetAccount(address solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[address] = data
}

// GetAccountData implements network.ChainClient.
func (f *FakeChain) GetAccountData(
	ctx context.Context,
	address solana.PublicKey,
) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.accounts[address]
	if !ok {
		return nil, errors.Wrap(network.ErrAccountNotFound, address.String())
	}
	return append([]byte(nil), data...), nil
}

// GetBalance implements network.ChainClient.
func (f *FakeChain) GetBalance(
	ctx context.Context,
	address solana.PublicKey,
) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[address], nil
}

// SendInstructions implements network.ChainClient. Instructions are applied
// atomically: any failure leaves the ledger unchanged.
func (f *FakeChain) SendInstructions(
	ctx context.Context,
	payer solana.PrivateKey,
	instructions ...solana.Instruction,
) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	type queued struct {
		variant     program.Variant
		args        program.RequestArgs
		computation solana.PublicKey
	}

	created := map[solana.PublicKey][]byte{}
	referenced := []solana.PublicKey{payer.PublicKey()}
	var pending []queued
	var logs []string

	for _, ix := range instructions {
		if !ix.ProgramID().Equals(f.resolver.MXEProgram()) {
			return solana.Signature{}, errors.Errorf(
				"unexpected program %s",
				ix.ProgramID(),
			)
		}

		data, err := ix.Data()
		if err != nil {
			return solana.Signature{}, err
		}
		if len(data) < program.DiscriminatorSize {
			return solana.Signature{}, errors.New("instruction data too short")
		}

		metas := ix.Accounts()
		for _, meta := range metas {
			referenced = append(referenced, meta.PublicKey)
		}

		variant, isInit, ok := f.matchInstruction(data)
		if !ok {
			return solana.Signature{}, errors.New("unknown instruction")
		}

		logs = append(logs, "Program "+f.resolver.MXEProgram().String()+" invoke [1]")

		if isInit {
			compDef := metas[2].PublicKey
			if _, exists := f.accounts[compDef]; exists {
				return solana.Signature{}, f.inUse(compDef)
			}
			created[compDef] = []byte(variant.Circuit)
			logs = append(logs, "Program log: Instruction: "+variant.InitInstruction)
			continue
		}

		args, err := program.DecodeRequestArgs(variant, data)
		if err != nil {
			return solana.Signature{}, err
		}

		comp := metas[5].PublicKey
		if _, exists := f.accounts[comp]; exists {
			return solana.Signature{}, f.inUse(comp)
		}
		if _, exists := f.accounts[metas[6].PublicKey]; !exists {
			return solana.Signature{}, errors.New(
				"computation definition not initialized",
			)
		}
		created[comp] = binary.LittleEndian.AppendUint64(nil, args.Offset())
		pending = append(pending, queued{variant, args, comp})
		logs = append(logs, "Program log: Instruction: "+variant.Instruction)
	}

	for addr, data := range created {
		f.accounts[addr] = data
	}
	f.requests += len(pending)

	sig := f.recordLocked(referenced)
	f.publishLocked(&network.ProgramLog{Signature: sig, Slot: f.slot, Logs: logs})

	for _, q := range pending {
		if f.dropResults {
			continue
		}
		f.callbacks.Add(1)
		go f.finalize(q.variant, q.args, q.computation)
	}

	return sig, nil
}

func (f *FakeChain) matchInstruction(data []byte) (program.Variant, bool, bool) {
	disc := program.Discriminator(data[:program.DiscriminatorSize])
	for _, v := range program.Variants() {
		switch disc {
		case program.InstructionDiscriminator(v.InitInstruction):
			return v, true, true
		case program.InstructionDiscriminator(v.Instruction):
			return v, false, true
		}
	}
	return program.Variant{}, false, false
}

func (f *FakeChain) inUse(address solana.PublicKey) error {
	return errors.Wrapf(
		network.ErrAccountInUse,
		"Allocate: account Address { address: %s, base: None } already in use",
		address,
	)
}

// finalize plays the cluster: it evaluates the circuit and lands the
// callback transaction.
func (f *FakeChain) finalize(
	variant program.Variant,
	args program.RequestArgs,
	comp solana.PublicKey,
) {
	defer f.callbacks.Done()

	logs, err := f.evaluate(variant, args)

	f.mu.Lock()
	defer f.mu.Unlock()

	sig := f.recordLocked([]solana.PublicKey{
		f.resolver.MXEProgram(),
		comp,
		f.resolver.ArciumProgram(),
	})

	log := &network.ProgramLog{Signature: sig, Slot: f.slot}
	if err != nil || f.failCallbacks {
		f.logger.Debug("callback failed", zap.Error(err))
		log.Err = map[string]any{"InstructionError": []any{0, "AbortedComputation"}}
		log.Logs = []string{"Program log: Computation aborted"}
	} else {
		log.Logs = logs
	}
	f.publishLocked(log)
}

func (f *FakeChain) evaluate(
	variant program.Variant,
	args program.RequestArgs,
) ([]string, error) {
	user, target, pub, nonce := requestVectors(args)

	shared, err := f.mxeKey.AgreeWith(pub[:])
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewFieldCipher(shared)
	if err != nil {
		return nil, err
	}

	// inputs are encrypted as one vector, user segments first
	blocks := append(append([]computation.CiphertextBlock{}, user...), target...)
	values, err := cipher.Decrypt(blocks, nonce)
	if err != nil {
		return nil, err
	}

	var score uint64
	for i := 0; i < variant.Segments; i++ {
		if values[i] == values[variant.Segments+i] {
			score++
		}
	}
	var related uint64
	if score >= f.threshold {
		related = 1
	}

	var outNonce computation.Nonce
	if _, err := rand.Read(outNonce[:]); err != nil {
		return nil, err
	}
	out, err := cipher.Encrypt([]uint64{score, related}, outNonce)
	if err != nil {
		return nil, err
	}

	line, err := program.EncodeDnaMatchEvent(&program.DnaMatchEvent{
		EncryptedScore:      out[0],
		EncryptedIsRelative: out[1],
		Nonce:               outNonce,
	})
	if err != nil {
		return nil, err
	}

	return []string{
		"Program " + f.resolver.MXEProgram().String() + " invoke [1]",
		"Program log: Instruction: " + variant.Circuit + "_callback",
		line,
	}, nil
}

func requestVectors(args program.RequestArgs) (
	user []computation.CiphertextBlock,
	target []computation.CiphertextBlock,
	pub [32]byte,
	nonce computation.Nonce,
) {
	switch a := args.(type) {
	case *program.RequestArgsV1:
		for i := range a.UserShards {
			user = append(user, a.UserShards[i])
			target = append(target, a.TargetShards[i])
		}
		return user, target, a.PublicKey, a.Nonce
	case *program.RequestArgsV2:
		for i := range a.UserShards {
			user = append(user, a.UserShards[i])
			target = append(target, a.TargetShards[i])
		}
		return user, target, a.PublicKey, a.Nonce
	}
	return nil, nil, pub, nonce
}

func (f *FakeChain) recordLocked(accounts []solana.PublicKey) solana.Signature {
	var sig solana.Signature
	rand.Read(sig[:])
	f.slot++
	f.transactions[sig] = accounts
	return sig
}

func (f *FakeChain) publishLocked(log *network.ProgramLog) {
	for _, sub := range f.subs {
		select {
		case sub.logs <- log:
		default:
			f.logger.Warn("log subscriber full, dropping log")
		}
	}
}

// GetTransactionAccounts implements network.ChainClient.
func (f *FakeChain) GetTransactionAccounts(
	ctx context.Context,
	signature solana.Signature,
) ([]solana.PublicKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	accounts, ok := f.transactions[signature]
	if !ok {
		return nil, errors.Wrap(ErrTransactionNotFound, signature.String())
	}
	return append([]solana.PublicKey(nil), accounts...), nil
}

// SubscribeLogs implements network.ChainClient.
func (f *FakeChain) SubscribeLogs(
	ctx context.Context,
	mentions solana.PublicKey,
) (network.LogSubscription, error) {
	if !mentions.Equals(f.resolver.MXEProgram()) {
		return nil, errors.Errorf("no logs for %s", mentions)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextSub++
	sub := &fakeLogSubscription{
		id:    f.nextSub,
		chain: f,
		logs:  make(chan *network.ProgramLog, 256),
		done:  make(chan struct{}),
	}
	f.subs[sub.id] = sub
	return sub, nil
}

// Wait blocks until every in-flight callback has landed.
func (f *FakeChain) Wait() {
	f.callbacks.Wait()
}

// Close implements network.ChainClient.
func (f *FakeChain) Close() error {
	f.Wait()

	f.mu.Lock()
	subs := make([]*fakeLogSubscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}

type fakeLogSubscription struct {
	id    uint64
	chain *FakeChain
	logs  chan *network.ProgramLog
	done  chan struct{}
	once  sync.Once
}

func (s *fakeLogSubscription) Recv(
	ctx context.Context,
) (*network.ProgramLog, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errors.New("subscription closed")
	case log := <-s.logs:
		return log, nil
	}
}

func (s *fakeLogSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.chain.mu.Lock()
		delete(s.chain.subs, s.id)
		s.chain.mu.Unlock()
		close(s.done)
	})
}
