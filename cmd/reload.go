// Package cmd implements the citrascope CLI using the cobra framework.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/citra-space/citrascope/internal/command"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the daemon's configuration",
	Long: `Reload the running daemon's configuration from disk over the control
socket. Only logging is hot-reloaded; fields like adapter selection or
listen addresses are applied to the in-memory config but require a restart
to actually take effect.`,
	Run: func(cmd *cobra.Command, args []string) {
		runReloadCommand()
	},
}

func runReloadCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	cliLog.Info("sending reload signal to daemon...")
	resp, err := client.ConfigReload(ctx)
	if err != nil {
		exitWithError("failed to send reload command", err)
	}

	if resp.Error != nil {
		exitWithError(fmt.Sprintf("config_reload failed: %s", resp.Error.Message), nil)
	}

	cliLog.Info("configuration reloaded")
}
