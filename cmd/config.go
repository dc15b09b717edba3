// Package cmd implements the citrascope CLI using the cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/citra-space/citrascope/internal/config"
)

// configCmd groups local (no running daemon required) config inspection.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective daemon configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the fully-resolved config (file + env + defaults) as YAML",
	Long: `Load the config file named by --config, apply environment overrides
and defaults exactly as the daemon would at startup, and print the result.
Useful for confirming what a deployment will actually run with before
starting it, without needing a running daemon to ask.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Println(string(out))
	return nil
}
