package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Silent-Builder-x/ArcDNA/config"
	"github.com/Silent-Builder-x/ArcDNA/node/app"
	"github.com/Silent-Builder-x/ArcDNA/node/program"
)

var setupVariant string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initializes computation definitions",
	Long: `Initializes the computation definition of one variant, or of every
variant when --variant is not given. Definitions that already exist are left
untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(func(
			ctx context.Context,
			client *app.Client,
			cfg *config.Config,
		) error {
			variants := []string{}
			if setupVariant != "" {
				variants = append(variants, setupVariant)
			} else {
				for _, v := range program.Variants() {
					variants = append(variants, v.Name)
				}
			}

			for _, variant := range variants {
				initialized, err := client.EnsureSetup(ctx, variant)
				if err != nil {
					return err
				}
				if initialized {
					fmt.Printf("%s: initialized\n", variant)
				} else {
					fmt.Printf("%s: already initialized\n", variant)
				}
			}
			return nil
		})
	},
}

func init() {
	setupCmd.Flags().StringVar(
		&setupVariant,
		"variant",
		"",
		"protocol variant, dna4 or dna8 (default all)",
	)
	rootCmd.AddCommand(setupCmd)
}
