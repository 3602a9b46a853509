package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/Silent-Builder-x/ArcDNA/config"
)

var force bool

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Performs a configuration operation",
}

var printConfigCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDirectory(cmd))
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "print config")
		}

		fmt.Print(string(out))
		return nil
	},
}

var createDefaultConfigCmd = &cobra.Command{
	Use:   "create-default",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := configDirectory(cmd)
		path := filepath.Join(dir, "config.yml")
		if _, err := os.Stat(path); err == nil && !force {
			return errors.Errorf("%s exists, use --force to overwrite", path)
		}

		if err := config.SaveConfig(dir, config.NewConfig()); err != nil {
			return err
		}

		fmt.Printf("Created default config: %s\n", path)
		return nil
	},
}

func configDirectory(cmd *cobra.Command) string {
	return cmd.Flag("config").Value.String()
}

func init() {
	createDefaultConfigCmd.Flags().BoolVar(
		&force,
		"force",
		false,
		"overwrite an existing config file",
	)

	ConfigCmd.AddCommand(printConfigCmd)
	ConfigCmd.AddCommand(createDefaultConfigCmd)
}
