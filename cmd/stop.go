// Package cmd implements the citrascope CLI using the cobra framework.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/citra-space/citrascope/internal/command"
	"github.com/citra-space/citrascope/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the citrascope daemon",
	Long: `Stop the citrascope daemon gracefully via the daemon_shutdown control
command. Falls back to sending SIGTERM to the PID recorded in the PID file
if the control socket is unreachable (e.g. the daemon is wedged).`,
	Run: func(cmd *cobra.Command, args []string) {
		runStopCommand()
	},
}

func runStopCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.DaemonShutdown(ctx)
	if err != nil {
		cliLog.WithError(err).Warn("control socket unreachable, falling back to pid file")
		if stopErr := daemon.StopByPIDFile(pidFile, socketPath); stopErr != nil {
			exitWithError("failed to stop daemon", stopErr)
		}
		cliLog.Info("daemon stopped")
		return
	}

	if resp.Error != nil {
		exitWithError(fmt.Sprintf("daemon_shutdown failed: %s", resp.Error.Message), nil)
	}

	cliLog.Info("shutdown requested, daemon is stopping")
}
