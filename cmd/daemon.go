package cmd

import (
	"github.com/spf13/cobra"

	"github.com/citra-space/citrascope/internal/daemon"
)

var pidFile string

// daemonCmd runs the daemon in the foreground: this is what "citrascope
// start" re-execs into as a detached background process, and what an
// operator invokes directly under a process supervisor (systemd, etc).
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the citrascope daemon in the foreground",
	Long: `Run the citrascope daemon in the foreground. Blocks until a shutdown
signal (SIGTERM/SIGINT), the daemon_shutdown control command, or an
unrecoverable startup error.

Typically invoked by a process supervisor, or indirectly via "citrascope
start" which backgrounds this same command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New(configFile, socketPath, pidFile)
		if err != nil {
			return err
		}
		if err := d.Start(); err != nil {
			return err
		}
		return d.Run()
	},
}

func init() {
	daemonCmd.Flags().StringVar(&pidFile, "pidfile", "/var/run/citrascope.pid", "daemon PID file path")
}
