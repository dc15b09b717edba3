package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/citra-space/citrascope/internal/daemon"
)

var foreground bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the citrascope daemon",
	Long: `Start the citrascope daemon.

By default this detaches into the background, re-executing this same binary
as "citrascope daemon" in a new session, and waits for its control socket to
come up. Pass --foreground to run it inline instead (e.g. under systemd,
where backgrounding would confuse the supervisor).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if foreground {
			d, err := daemon.New(configFile, socketPath, pidFile)
			if err != nil {
				return err
			}
			if err := d.Start(); err != nil {
				return err
			}
			return d.Run()
		}

		if err := daemon.EnsureRunning(configFile, socketPath, pidFile); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}
		cliLog.Info("citrascope daemon started")
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in foreground instead of backgrounding")
}
