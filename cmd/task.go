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

// taskCmd groups observation-task inspection subcommands.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect observation tasks",
	Long: `Inspect observation tasks tracked by the running daemon.

Subcommands:
  list    - List every tracked task and its bucket
  status  - Get one task's (or every task's) status
  cancel  - Request best-effort cancellation of a task`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tracked task",
	Run: func(cmd *cobra.Command, args []string) {
		runTaskList()
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Get task status",
	Long: `Get the status of one task, or every task if task-id is omitted.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var taskID string
		if len(args) > 0 {
			taskID = args[0]
		}
		runTaskStatus(taskID)
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Request cancellation of a task",
	Long: `Request best-effort cancellation of an in-flight task. The telescope
task driver only checks for a cancel request at lead-point loop boundaries,
so a task already past its last checkpoint (e.g. mid-exposure) runs to
completion regardless.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTaskCancel(args[0])
	},
}

func init() {
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskCancelCmd)
}

func runTaskList() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.TaskList(ctx)
	if err != nil {
		exitWithError("failed to list tasks", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_list failed: %s", resp.Error.Message), nil)
	}

	resultJSON, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(resultJSON))
}

func runTaskStatus(taskID string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.TaskStatus(ctx, taskID)
	if err != nil {
		exitWithError("failed to query task status", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_status failed: %s", resp.Error.Message), nil)
	}

	resultJSON, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(resultJSON))
}

func runTaskCancel(taskID string) {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.TaskCancel(ctx, taskID)
	if err != nil {
		exitWithError("failed to send cancel command", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("task_cancel failed: %s", resp.Error.Message), nil)
	}

	cliLog.Info(fmt.Sprintf("cancellation requested for task %s", taskID))
}
