// Package cmd implements the citrascope CLI using the cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/citra-space/citrascope/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a citrascope config file",
	Long: `Validate a citrascope daemon config file without starting the daemon.

Checks that the file parses, every required field is present, and every
cross-field constraint (cable wrap limits, disk thresholds) holds. Reads
the file named by the global --config flag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidateCommand()
	},
}

func runValidateCommand() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	cliLog.Info(fmt.Sprintf("VALID: telescope %q at ground station %q, adapter %q, dispatch server %q",
		cfg.Node.TelescopeID, cfg.Node.GroundStationID, cfg.Adapter.Name, cfg.Server.BaseURL))
	return nil
}
