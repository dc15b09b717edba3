// Package cmd implements the citrascope CLI using the cobra framework.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/citra-space/citrascope/internal/command"
)

// managerCmd groups C9 autofocus/alignment/homing control subcommands.
var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Trigger or inspect autofocus, alignment, and homing routines",
	Long: `Control the mount-side autofocus, alignment, and homing managers.

Subcommands:
  trigger <name>  - Request a run of "autofocus", "alignment", or "homing"
  status          - Show every manager's requested/running/last-run state`,
}

var managerTriggerCmd = &cobra.Command{
	Use:   "trigger <autofocus|alignment|homing>",
	Short: "Request a manager run at the next safe opportunity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runManagerTrigger(args[0])
	},
}

var managerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every manager's current state",
	Run: func(cmd *cobra.Command, args []string) {
		runManagerStatus()
	},
}

func init() {
	managerCmd.AddCommand(managerTriggerCmd)
	managerCmd.AddCommand(managerStatusCmd)
}

func runManagerTrigger(name string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.ManagerTrigger(ctx, name)
	if err != nil {
		exitWithError("failed to trigger manager", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("manager_trigger failed: %s", resp.Error.Message), nil)
	}

	cliLog.Info(fmt.Sprintf("%s run requested", name))
}

func runManagerStatus() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.ManagerStatus(ctx)
	if err != nil {
		exitWithError("failed to query manager status", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("manager_status failed: %s", resp.Error.Message), nil)
	}

	resultJSON, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(resultJSON))
}
