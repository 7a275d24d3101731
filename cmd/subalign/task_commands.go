package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"subalign/internal/tasks"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var server string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks on a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := ctx.apiClient(server)
			if err != nil {
				return err
			}
			resp, err := c.Tasks(cmd.Context())
			if err != nil {
				return wrapAPIError(err, server)
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if len(resp.Tasks) == 0 {
				fmt.Fprintln(out, "No tasks")
				return nil
			}
			items := append([]tasks.Task(nil), resp.Tasks...)
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].CreatedAt.Before(items[j].CreatedAt)
			})

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(items))
			for _, task := range items {
				result := task.OutputFile
				if task.Status == tasks.StatusError {
					result = task.Error
				}
				rows = append(rows, []string{
					task.ID,
					renderStatus(task.Status, colorize),
					strconv.Itoa(task.Progress) + "%",
					dashIfEmpty(task.BatchID),
					dashIfEmpty(result),
					formatAge(task.CreatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Task", "Status", "Progress", "Batch", "Result", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%d total, %d processing, %d completed, %d failed\n",
				resp.Counts.Total, resp.Counts.Processing, resp.Counts.Completed, resp.Counts.Error)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&server, "server", "", "Server address (defaults to server.bind)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var server string

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient(server)
			if err != nil {
				return err
			}
			task, err := c.Status(cmd.Context(), args[0])
			if err != nil {
				return wrapAPIError(err, server)
			}
			if asJSON {
				return writeJSON(cmd, task)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderDetailLine("Task", task.ID))
			fmt.Fprintln(out, renderDetailLine("Status", renderStatus(task.Status, shouldColorize(out))))
			fmt.Fprintln(out, renderDetailLine("Progress", strconv.Itoa(task.Progress)+"%"))
			if task.BatchID != "" {
				fmt.Fprintln(out, renderDetailLine("Batch", task.BatchID))
			}
			if task.OutputFile != "" {
				fmt.Fprintln(out, renderDetailLine("Output", task.OutputFile))
			}
			if task.Error != "" {
				fmt.Fprintln(out, renderDetailLine("Error", task.Error))
				if task.ErrorKind != "" {
					fmt.Fprintln(out, renderDetailLine("Kind", string(task.ErrorKind)))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&server, "server", "", "Server address (defaults to server.bind)")
	return cmd
}

func formatAge(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	age := time.Since(ts).Round(time.Second)
	if age < time.Second {
		return "just now"
	}
	return age.String() + " ago"
}
