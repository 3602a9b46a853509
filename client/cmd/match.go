package cmd

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Silent-Builder-x/ArcDNA/client/utils"
	"github.com/Silent-Builder-x/ArcDNA/config"
	"github.com/Silent-Builder-x/ArcDNA/node/app"
)

var (
	matchVariant     string
	matchUser        string
	matchTarget      string
	matchSetup       bool
	matchSkipBalance bool
	batchFile        string
	batchConcurrency int
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Compares two segment vectors confidentially",
	Example: `  arcdna match --user 100,200,300,400 --target 100,200,300,999
  arcdna match --variant dna8 --user 1,2,3,4,5,6,7,8 --target 1,2,3,4,5,6,0,0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := utils.ParseSegments(matchUser)
		if err != nil {
			return errors.Wrap(err, "--user")
		}
		target, err := utils.ParseSegments(matchTarget)
		if err != nil {
			return errors.Wrap(err, "--target")
		}

		return runClient(func(
			ctx context.Context,
			client *app.Client,
			cfg *config.Config,
		) error {
			variant := pickVariant(matchVariant, cfg.Program.Variant)
			if err := prepare(ctx, client, variant); err != nil {
				return err
			}

			result, err := client.RequestGenomicMatch(ctx, variant, user, target)
			if err != nil {
				return err
			}

			fmt.Print(utils.FormatMatch(result))
			return nil
		})
	},
}

var matchBatchCmd = &cobra.Command{
	Use:   "match-batch",
	Short: "Runs every pair in a YAML batch file",
	Long: `Runs every pair in a YAML batch file:

  variant: dna4
  pairs:
    - user: [100, 200, 300, 400]
      target: [100, 200, 300, 999]`,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := utils.LoadBatchFile(batchFile)
		if err != nil {
			return err
		}

		return runClient(func(
			ctx context.Context,
			client *app.Client,
			cfg *config.Config,
		) error {
			variant := pickVariant(
				matchVariant,
				pickVariant(batch.Variant, cfg.Program.Variant),
			)
			if err := prepare(ctx, client, variant); err != nil {
				return err
			}

			results, err := client.RunBatch(
				ctx,
				variant,
				batch.MatchPairs(),
				batchConcurrency,
			)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Printf("#%d error: %v\n", r.Index, r.Err)
					continue
				}
				fmt.Printf("#%d %s\n", r.Index, utils.FormatMatchLine(r.Result))
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return errors.Errorf("%d of %d pairs failed", failed, len(results))
			}
			return nil
		})
	},
}

func pickVariant(preferred string, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func prepare(ctx context.Context, client *app.Client, variant string) error {
	if !matchSkipBalance {
		if _, err := client.Balance(ctx); err != nil {
			return err
		}
	}

	if matchSetup {
		if _, err := client.EnsureSetup(ctx, variant); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{matchCmd, matchBatchCmd} {
		c.Flags().StringVar(
			&matchVariant,
			"variant",
			"",
			"protocol variant, dna4 or dna8 (default from config)",
		)
		c.Flags().BoolVar(
			&matchSetup,
			"setup",
			false,
			"initialize the computation definition first if needed",
		)
		c.Flags().BoolVar(
			&matchSkipBalance,
			"skip-balance",
			false,
			"skip the payer balance preflight",
		)
	}

	matchCmd.Flags().StringVar(
		&matchUser,
		"user",
		"",
		"comma separated user segments",
	)
	matchCmd.Flags().StringVar(
		&matchTarget,
		"target",
		"",
		"comma separated target segments",
	)
	matchCmd.MarkFlagRequired("user")
	matchCmd.MarkFlagRequired("target")

	matchBatchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "batch file")
	matchBatchCmd.Flags().IntVar(
		&batchConcurrency,
		"concurrency",
		4,
		"maximum requests in flight",
	)
	matchBatchCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(matchBatchCmd)
}
