package keys

import (
	"context"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/config"
	nodekeys "github.com/Silent-Builder-x/ArcDNA/node/keys"
	"github.com/Silent-Builder-x/ArcDNA/node/rpc"
)

var (
	showBalance bool
	outPath     string
)

var KeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manages the payer keypair",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Shows the payer address",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd.Flag("config").Value.String())
		if err != nil {
			return err
		}

		payer, err := nodekeys.LoadPayerKeypair(cfg.Keys.PayerKeypairPath)
		if err != nil {
			return err
		}

		fmt.Printf("Payer: %s\n", payer.PublicKey())
		if !showBalance {
			return nil
		}

		chain := rpc.NewSolanaClient(cfg.Network, zap.NewNop())
		defer chain.Close()

		lamports, err := chain.GetBalance(context.Background(), payer.PublicKey())
		if err != nil {
			return err
		}

		sol := decimal.NewFromUint64(lamports).Shift(-9)
		fmt.Printf("Balance: %s SOL\n", sol)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a new payer keypair file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := nodekeys.ExpandPath(outPath)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("%s exists", path)
		}

		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return errors.Wrap(err, "create keypair")
		}
		if err := nodekeys.SavePayerKeypair(path, key); err != nil {
			return err
		}

		fmt.Printf("Payer: %s\nWritten to %s\n", key.PublicKey(), path)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(
		&showBalance,
		"balance",
		false,
		"also query the payer balance",
	)
	createCmd.Flags().StringVarP(
		&outPath,
		"out",
		"o",
		"~/.config/solana/id.json",
		"where to write the keypair",
	)

	KeysCmd.AddCommand(showCmd)
	KeysCmd.AddCommand(createCmd)
}
