package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	clientConfig "github.com/Silent-Builder-x/ArcDNA/client/cmd/config"
	"github.com/Silent-Builder-x/ArcDNA/client/cmd/keys"
	"github.com/Silent-Builder-x/ArcDNA/config"
	"github.com/Silent-Builder-x/ArcDNA/node/app"
)

var configDirectory string
var debug bool

var rootCmd = &cobra.Command{
	Use:   "arcdna",
	Short: "ArcDNA confidential matching client",
	Long: `ArcDNA encrypts genomic segment vectors client-side and asks an Arcium
MPC cluster to compare them. Only the encrypted similarity score and
relatedness flag leave the cluster.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runClient loads the configuration, connects a client and runs fn until it
// returns or the process is interrupted.
func runClient(
	fn func(ctx context.Context, client *app.Client, cfg *config.Config) error,
) error {
	cfg, err := config.LoadConfig(configDirectory)
	if err != nil {
		return err
	}

	logger, closer, err := cfg.CreateLogger(debug)
	if err != nil {
		return err
	}
	defer closer.Close()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.Metrics.ListenAddr != "" {
		server := serveMetrics(logger, cfg.Metrics.ListenAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				2*time.Second,
			)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	client, err := app.Dial(logger, cfg)
	if err != nil {
		return err
	}

	if err := client.Start(ctx); err != nil {
		client.Stop()
		return err
	}
	defer func() {
		if err := client.Stop(); err != nil {
			logger.Warn("client shut down with errors", zap.Error(err))
		}
	}()

	return fn(ctx, client, cfg)
}

func serveMetrics(logger *zap.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start prometheus server", zap.Error(err))
		}
	}()

	return server
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configDirectory,
		"config",
		filepath.Join(".", ".config"),
		"the configuration directory",
	)
	rootCmd.PersistentFlags().BoolVar(
		&debug,
		"debug",
		false,
		"sets log output to debug (verbose)",
	)

	rootCmd.AddCommand(clientConfig.ConfigCmd)
	rootCmd.AddCommand(keys.KeysCmd)
}
