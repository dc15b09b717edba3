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

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	Long: `Query the running daemon for imaging/processing/upload queue
statistics: depth, in-flight count, and retry/failure counters.`,
	Run: func(cmd *cobra.Command, args []string) {
		runStatsCommand()
	},
}

func runStatsCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.QueueStats(ctx)
	if err != nil {
		exitWithError("failed to query queue stats", err)
	}

	if resp.Error != nil {
		exitWithError(fmt.Sprintf("queue_stats failed: %s", resp.Error.Message), nil)
	}

	resultJSON, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}

	fmt.Println(string(resultJSON))
}
