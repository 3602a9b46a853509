package app

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Silent-Builder-x/ArcDNA/config"
	"github.com/Silent-Builder-x/ArcDNA/node/address"
	"github.com/Silent-Builder-x/ArcDNA/node/crypto"
	"github.com/Silent-Builder-x/ArcDNA/node/events"
	"github.com/Silent-Builder-x/ArcDNA/node/execution"
	"github.com/Silent-Builder-x/ArcDNA/node/keys"
	"github.com/Silent-Builder-x/ArcDNA/node/program"
	"github.com/Silent-Builder-x/ArcDNA/node/rpc"
	pstore "github.com/Silent-Builder-x/ArcDNA/node/store"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
	"github.com/Silent-Builder-x/ArcDNA/types/store"
	"github.com/Silent-Builder-x/ArcDNA/utils/retry"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSegmentCount        = errors.New("wrong number of segments")
)

var lamportsPerSOL = decimal.New(1, 9)

// Client runs confidential matching requests against one MXE program on one
// cluster.
type Client struct {
	logger       *zap.Logger
	config       *config.Config
	chain        network.ChainClient
	ownsChain    bool
	payer        solana.PrivateKey
	resolver     *address.Resolver
	db           *pstore.PebbleDB
	computations store.ComputationStore
	profiles     store.ProfileStore
	distributor  *events.ProgramEventDistributor
	submitter    *execution.Submitter
	awaiter      *execution.Awaiter
	mxeKeys      *lru.Cache[solana.PublicKey, []byte]
	profileMu    sync.Mutex
	newOffset    func() (computation.Offset, error)
}

// MatchPair is one user and target vector of the same variant.
type MatchPair struct {
	User   []uint64
	Target []uint64
}

// BatchResult is the outcome of one pair in a batch, in input order.
type BatchResult struct {
	Index  int
	Result *computation.MatchResult
	Err    error
}

// Dial connects to the configured network and builds a Client for the payer
// keypair named in the config.
func Dial(logger *zap.Logger, cfg *config.Config) (*Client, error) {
	payer, err := keys.LoadPayerKeypair(cfg.Keys.PayerKeypairPath)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}

	chain := rpc.NewSolanaClient(cfg.Network, logger)
	client, err := NewClient(logger, cfg, chain, payer)
	if err != nil {
		chain.Close()
		return nil, errors.Wrap(err, "dial")
	}
	client.ownsChain = true

	return client, nil
}

func NewClient(
	logger *zap.Logger,
	cfg *config.Config,
	chain network.ChainClient,
	payer solana.PrivateKey,
) (*Client, error) {
	logger = logger.With(zap.String("process", "client"))

	mxeProgram, err := solana.PublicKeyFromBase58(cfg.Program.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "new client: program id")
	}
	arciumProgram, err := solana.PublicKeyFromBase58(
		cfg.Program.ArciumProgramID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "new client: arcium program id")
	}

	resolver, err := address.NewResolver(
		arciumProgram,
		mxeProgram,
		cfg.Network.ClusterOffset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "new client")
	}

	mxeKeys, err := lru.New[solana.PublicKey, []byte](cfg.MXEKey.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "new client")
	}

	db, err := pstore.NewPebbleDB(logger, cfg.DB)
	if err != nil {
		return nil, errors.Wrap(err, "new client")
	}

	computations := pstore.NewPebbleComputationStore(db, logger)
	distributor := events.NewProgramEventDistributor(chain, mxeProgram, logger)

	return &Client{
		logger:       logger,
		config:       cfg,
		chain:        chain,
		payer:        payer,
		resolver:     resolver,
		db:           db,
		computations: computations,
		profiles:     pstore.NewPebbleProfileStore(db, logger),
		distributor:  distributor,
		submitter: execution.NewSubmitter(
			logger,
			chain,
			computations,
			resolver,
			payer,
			execution.NewOffChainCircuitRegistrar(logger, cfg.Program.Circuit),
		),
		awaiter: execution.NewAwaiter(
			logger,
			distributor,
			chain,
			computations,
			retry.Policy{
				MaxAttempts: cfg.Await.MaxAttempts,
				Delay:       cfg.Await.Delay,
			},
		),
		mxeKeys:   mxeKeys,
		newOffset: randomOffset,
	}, nil
}

func randomOffset() (computation.Offset, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return computation.Offset(binary.LittleEndian.Uint64(b[:])), nil
}

// Start opens the program event stream and reports computations left live
// by an earlier run.
func (c *Client) Start(ctx context.Context) error {
	if err := c.distributor.Start(ctx); err != nil {
		return errors.Wrap(err, "start")
	}

	if err := c.reapStale(); err != nil {
		c.logger.Warn("could not inspect pending computations", zap.Error(err))
	}

	c.logger.Info(
		"client started",
		zap.String("payer", c.payer.PublicKey().String()),
		zap.Uint32("cluster_offset", c.resolver.ClusterOffset()),
		zap.String("program", c.resolver.MXEProgram().String()),
	)
	return nil
}

// Stop closes the event stream and the store. The chain client is closed
// only when the client was created by Dial.
func (c *Client) Stop() error {
	var errs []error
	if err := c.distributor.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.ownsChain {
		if err := c.chain.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Wrap(errs[0], "stop")
	}
	return nil
}

func (c *Client) Resolver() *address.Resolver {
	return c.resolver
}

func (c *Client) Payer() solana.PublicKey {
	return c.payer.PublicKey()
}

// reapStale marks live computations older than the configured age as timed
// out so their offsets stop blocking reuse.
func (c *Client) reapStale() error {
	live, err := c.computations.RangeLive(c.resolver.ClusterOffset())
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(
		-time.Duration(c.config.DB.StaleAfterHours) * time.Hour,
	).UnixMilli()
	for _, record := range live {
		if record.UpdatedAt > cutoff {
			continue
		}

		c.logger.Warn(
			"stale pending computation",
			zap.Uint64("offset", record.Offset),
			zap.String("variant", record.Variant),
			zap.String("status", record.Status.String()),
			zap.String("signature", record.Signature.String()),
		)
		if err := c.computations.UpdateStatus(
			record.ClusterOffset,
			record.Offset,
			store.ComputationTimedOut,
			solana.Signature{},
		); err != nil {
			return err
		}
	}

	return nil
}

// MXEPublicKey returns the cluster's x25519 key, polling the MXE account
// until key generation has completed.
func (c *Client) MXEPublicKey(ctx context.Context) ([]byte, error) {
	mxe, err := c.resolver.MXEAccount()
	if err != nil {
		return nil, errors.Wrap(err, "mxe public key")
	}

	if key, ok := c.mxeKeys.Get(mxe); ok {
		return key, nil
	}

	result, err := retry.Do(
		ctx,
		retry.Policy{
			MaxAttempts: c.config.MXEKey.MaxAttempts,
			Delay:       c.config.MXEKey.Delay,
		},
		func(ctx context.Context, attempt int) ([]byte, bool, error) {
			data, err := c.chain.GetAccountData(ctx, mxe)
			if err != nil {
				c.logger.Debug(
					"mxe account not readable",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return nil, false, err
			}

			account, err := program.DecodeMXEAccount(data)
			if err != nil {
				return nil, false, retry.Permanent(err)
			}

			key, err := account.X25519Key()
			if err != nil {
				return nil, false, err
			}
			return key, true, nil
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "mxe public key")
	}
	if result.TimedOut {
		cause := result.LastErr
		if cause == nil {
			cause = program.ErrMXEKeyNotSet
		}
		return nil, errors.Wrapf(
			cause,
			"mxe public key: gave up after %d attempts",
			result.Attempts,
		)
	}

	c.mxeKeys.Add(mxe, result.Value)
	return result.Value, nil
}

// Balance returns the payer's balance in SOL and fails when it is below the
// configured minimum.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	lamports, err := c.chain.GetBalance(ctx, c.payer.PublicKey())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "balance")
	}

	sol := decimal.NewFromUint64(lamports).Div(lamportsPerSOL)
	c.logger.Info(
		"payer balance",
		zap.String("payer", c.payer.PublicKey().String()),
		zap.String("sol", sol.String()),
	)

	if lamports < c.config.Network.MinBalanceLamports {
		minimum := decimal.NewFromUint64(
			c.config.Network.MinBalanceLamports,
		).Div(lamportsPerSOL)
		return sol, errors.Wrapf(
			ErrInsufficientBalance,
			"balance: %s SOL below minimum %s SOL",
			sol,
			minimum,
		)
	}

	return sol, nil
}

// EnsureSetup initializes the variant's computation definition if needed.
func (c *Client) EnsureSetup(
	ctx context.Context,
	variantName string,
) (bool, error) {
	return c.submitter.EnsureComputationDefinitionInitialized(ctx, variantName)
}

// RequestGenomicMatch encrypts both vectors under a fresh key pair and
// nonce, queues the similarity computation and decrypts its result.
func (c *Client) RequestGenomicMatch(
	ctx context.Context,
	variantName string,
	user []uint64,
	target []uint64,
) (*computation.MatchResult, error) {
	variant, err := program.LookupVariant(variantName)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}
	if len(user) != variant.Segments || len(target) != variant.Segments {
		return nil, errors.Wrapf(
			ErrSegmentCount,
			"request genomic match: %s takes %d segments, got %d and %d",
			variant.Name,
			variant.Segments,
			len(user),
			len(target),
		)
	}

	mxeKey, err := c.MXEPublicKey(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	ephemeral, err := keys.NewX25519Key()
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}
	c.logger.Debug(
		"ephemeral key created",
		zap.Stringer("public_key", ephemeral.KeyPair().PublicKey),
		zap.Stringer("key_type", ephemeral.KeyPair().Type),
	)

	shared, err := ephemeral.AgreeWith(mxeKey)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}
	cipher, err := crypto.NewFieldCipher(shared)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	var nonce computation.Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	plaintext := make([]uint64, 0, 2*variant.Segments)
	plaintext = append(plaintext, user...)
	plaintext = append(plaintext, target...)
	blocks, err := cipher.Encrypt(plaintext, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	offset, err := c.newOffset()
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	addrs, err := c.resolver.ResolveRequest(offset, variant.Circuit, variant.Name)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	req := &computation.ComputationRequest{
		Offset:             offset,
		Variant:            variant.Name,
		EncryptedUser:      blocks[:variant.Segments],
		EncryptedTarget:    blocks[variant.Segments:],
		EphemeralPublicKey: ephemeral.PublicArray(),
		Nonce:              nonce,
		Addresses:          addrs,
	}

	sub := c.awaiter.Subscribe(offset)
	if _, err := c.submitter.Submit(ctx, req); err != nil {
		sub.Close()
		return nil, errors.Wrap(err, "request genomic match")
	}

	result, err := c.awaiter.AwaitResult(ctx, sub, req)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	values, err := cipher.Decrypt(result.EncryptedOutputs, result.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "request genomic match")
	}

	if c.config.Network.UseProfileRegistration {
		if err := c.recordRequest(); err != nil {
			c.logger.Warn("could not update profile", zap.Error(err))
		}
	}

	match := &computation.MatchResult{
		Score:      values[0],
		IsRelative: values[1],
		Segments:   variant.Segments,
	}
	c.logger.Info(
		"match decrypted",
		zap.Uint64("offset", uint64(offset)),
		zap.Uint64("score", match.Score),
		zap.Bool("related", match.Related()),
	)
	return match, nil
}

// RunBatch runs every pair with at most concurrency requests in flight.
// Per-pair failures are reported in the results; the returned error is set
// only when the context ends.
func (c *Client) RunBatch(
	ctx context.Context,
	variantName string,
	pairs []MatchPair,
	concurrency int,
) ([]BatchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, pair := range pairs {
		g.Go(func() error {
			match, err := c.RequestGenomicMatch(
				gctx,
				variantName,
				pair.User,
				pair.Target,
			)
			results[i] = BatchResult{Index: i, Result: match, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, errors.Wrap(err, "run batch")
	}
	return results, errors.Wrap(ctx.Err(), "run batch")
}

// Profile returns the local profile for the payer on this cluster,
// registering it on first use.
func (c *Client) Profile() (*store.Profile, error) {
	c.profileMu.Lock()
	defer c.profileMu.Unlock()

	profile, err := c.loadProfileLocked()
	return profile, errors.Wrap(err, "profile")
}

func (c *Client) loadProfileLocked() (*store.Profile, error) {
	payer := c.payer.PublicKey()
	cluster := c.resolver.ClusterOffset()

	profile, err := c.profiles.GetProfile(payer, cluster)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, pstore.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	profile = &store.Profile{
		Payer:         payer,
		ClusterOffset: cluster,
		Endpoint:      c.config.Network.RPCEndpoint,
		CreatedAt:     now,
		LastUsedAt:    now,
	}
	if err := c.profiles.PutProfile(profile); err != nil {
		return nil, err
	}

	c.logger.Info(
		"registered profile",
		zap.String("payer", payer.String()),
		zap.Uint32("cluster_offset", cluster),
	)
	return profile, nil
}

func (c *Client) recordRequest() error {
	c.profileMu.Lock()
	defer c.profileMu.Unlock()

	profile, err := c.loadProfileLocked()
	if err != nil {
		return err
	}

	profile.Requests++
	profile.LastUsedAt = time.Now().UnixMilli()
	profile.Endpoint = c.config.Network.RPCEndpoint
	return c.profiles.PutProfile(profile)
}
