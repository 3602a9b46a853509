package execution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/config"
	"github.com/Silent-Builder-x/ArcDNA/node/program"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
	"github.com/Silent-Builder-x/ArcDNA/utils/retry"
)

var ErrCircuitHashMismatch = errors.New("circuit hash mismatch")

// CircuitRegistrar makes a compiled circuit available to the cluster before
// its computation definition is initialized.
type CircuitRegistrar interface {
	Register(ctx context.Context, circuitLabel string) error
}

// OffChainCircuitRegistrar checks that the circuit the nodes will fetch from
// the configured source matches the expected hash. A local artifact is
// checked when present; otherwise the published copy is downloaded.
type OffChainCircuitRegistrar struct {
	logger *zap.Logger
	config config.CircuitConfig
	client *http.Client
	policy retry.Policy
}

func NewOffChainCircuitRegistrar(
	logger *zap.Logger,
	cfg config.CircuitConfig,
) *OffChainCircuitRegistrar {
	return &OffChainCircuitRegistrar{
		logger: logger.With(zap.String("component", "circuit_registrar")),
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		policy: retry.Policy{MaxAttempts: 5, Delay: 200 * time.Millisecond},
	}
}

// SourceURL returns where nodes fetch the circuit from.
func (r *OffChainCircuitRegistrar) SourceURL(circuitLabel string) string {
	if strings.Contains(r.config.SourceURL, "%s") {
		return fmt.Sprintf(r.config.SourceURL, circuitLabel)
	}
	return r.config.SourceURL
}

// Register implements CircuitRegistrar.
func (r *OffChainCircuitRegistrar) Register(
	ctx context.Context,
	circuitLabel string,
) error {
	source := r.SourceURL(circuitLabel)
	logger := r.logger.With(
		zap.String("circuit", circuitLabel),
		zap.String("source", source),
	)

	if r.config.Hash == "" {
		logger.Warn("no circuit hash configured, skipping verification")
		return nil
	}

	artifact := filepath.Join(r.config.ArtifactDir, circuitLabel+".arcis")
	f, err := os.Open(artifact)
	switch {
	case err == nil:
		defer f.Close()
		if err := verifyHash(f, r.config.Hash); err != nil {
			return errors.Wrap(err, "register "+artifact)
		}
		logger.Info("local circuit artifact verified", zap.String("path", artifact))
		return nil
	case !os.IsNotExist(err):
		return errors.Wrap(err, "register")
	}

	result, err := retry.Do(
		ctx,
		r.policy,
		func(ctx context.Context, attempt int) (struct{}, bool, error) {
			err := r.fetchAndVerify(ctx, source)
			if errors.Is(err, ErrCircuitHashMismatch) {
				return struct{}{}, false, retry.Permanent(err)
			}
			return struct{}{}, err == nil, err
		},
	)
	if err != nil {
		return errors.Wrap(err, "register")
	}
	if result.TimedOut {
		return errors.Wrap(result.LastErr, "register: fetch circuit source")
	}

	logger.Info("published circuit verified")
	return nil
}

func (r *OffChainCircuitRegistrar) fetchAndVerify(
	ctx context.Context,
	source string,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return retry.Permanent(err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("http status %d", resp.StatusCode)
	}

	return verifyHash(resp.Body, r.config.Hash)
}

func verifyHash(reader io.Reader, expectedHex string) error {
	h := sha256.New()
	if _, err := io.Copy(h, reader); err != nil {
		return err
	}

	sumHex := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(sumHex, expectedHex) {
		return errors.Wrapf(
			ErrCircuitHashMismatch,
			"expected %s, got %s",
			expectedHex,
			sumHex,
		)
	}
	return nil
}

// EnsureComputationDefinitionInitialized initializes the variant's
// computation definition unless it already exists. It reports whether this
// call performed the initialization.
func (s *Submitter) EnsureComputationDefinitionInitialized(
	ctx context.Context,
	variantName string,
) (bool, error) {
	variant, err := program.LookupVariant(variantName)
	if err != nil {
		return false, errors.Wrap(err, "ensure computation definition")
	}

	logger := s.logger.With(
		zap.String("variant", variant.Name),
		zap.String("circuit", variant.Circuit),
	)

	compDef, compDefOffset, err := s.resolver.CompDef(variant.Circuit)
	if err != nil {
		return false, errors.Wrap(err, "ensure computation definition")
	}

	_, err = s.chain.GetAccountData(ctx, compDef)
	switch {
	case err == nil:
		setupTotal.WithLabelValues(variant.Name, "existing").Inc()
		logger.Info(
			"computation definition already initialized",
			zap.String("account", compDef.String()),
		)
		return false, nil
	case !errors.Is(err, network.ErrAccountNotFound):
		setupTotal.WithLabelValues(variant.Name, "error").Inc()
		return false, errors.Wrap(err, "ensure computation definition")
	}

	mxe, err := s.resolver.MXEAccount()
	if err != nil {
		return false, errors.Wrap(err, "ensure computation definition")
	}

	data, err := s.chain.GetAccountData(ctx, mxe)
	if err != nil {
		setupTotal.WithLabelValues(variant.Name, "error").Inc()
		return false, errors.Wrap(err, "ensure computation definition: mxe account")
	}

	mxeAccount, err := program.DecodeMXEAccount(data)
	if err != nil {
		setupTotal.WithLabelValues(variant.Name, "error").Inc()
		return false, errors.Wrap(err, "ensure computation definition")
	}

	lut, err := s.resolver.LookupTable(mxeAccount.LutOffsetSlot)
	if err != nil {
		return false, errors.Wrap(err, "ensure computation definition")
	}

	if s.registrar != nil {
		if err := s.registrar.Register(ctx, variant.Circuit); err != nil {
			setupTotal.WithLabelValues(variant.Name, "error").Inc()
			return false, errors.Wrap(err, "ensure computation definition")
		}
	}

	ix, err := program.NewInitInstruction(variant, program.InitAccounts{
		Payer:         s.payer.PublicKey(),
		MXEAccount:    mxe,
		CompDef:       compDef,
		LookupTable:   lut,
		ArciumProgram: s.resolver.ArciumProgram(),
		MXEProgram:    s.resolver.MXEProgram(),
	})
	if err != nil {
		return false, errors.Wrap(err, "ensure computation definition")
	}

	logger.Info(
		"initializing computation definition",
		zap.Uint32("comp_def_offset", compDefOffset),
		zap.String("lookup_table", lut.String()),
	)

	sig, err := s.chain.SendInstructions(ctx, s.payer, ix)
	if err != nil {
		if errors.Is(err, network.ErrAccountInUse) {
			err = errors.Wrap(computation.ErrSetupAlreadyDone, err.Error())
		}
		if errors.Is(err, computation.ErrSetupAlreadyDone) {
			setupTotal.WithLabelValues(variant.Name, "existing").Inc()
			logger.Info(
				"initialization skipped, already initialized",
				zap.Error(err),
			)
			return false, nil
		}

		setupTotal.WithLabelValues(variant.Name, "error").Inc()
		return false, errors.Wrap(err, "ensure computation definition")
	}

	setupTotal.WithLabelValues(variant.Name, "initialized").Inc()
	logger.Info(
		"computation definition initialized",
		zap.String("signature", sig.String()),
	)
	return true, nil
}
