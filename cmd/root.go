// Package cmd implements the citrascope CLI using the cobra framework.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/citra-space/citrascope/internal/logcli"
)

var (
	// Global flags
	configFile string
	socketPath string

	cliLog = logcli.New("citrascope")
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "citrascope",
	Short: "Citrascope ground-station telescope orchestration daemon",
	Long: `Citrascope drives a single ground-station telescope through an
observation pass: it polls a remote dispatch server for assigned tasks,
points the mount, captures frames, runs them through a processing chain,
and uploads the accepted results, while a safety monitor gates every
queued action against disk space, clock health, cable wrap, and operator
stop requests.

This binary is both the daemon ("citrascope daemon") and the local control
CLI for it, talking to the running daemon over a Unix domain socket.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/citrascope/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/citrascope.sock",
		"daemon control socket path")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(managerCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}

// exitWithError logs an error message and exits with code 1.
func exitWithError(msg string, err error) {
	if err != nil {
		cliLog.WithError(err).Error(msg)
	} else {
		cliLog.Error(msg)
	}
	os.Exit(1)
}
