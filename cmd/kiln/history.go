package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aristath/kiln/internal/persistence"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or the tasks of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.History.Disabled {
			return fmt.Errorf("run history is disabled in configuration")
		}
		store, err := persistence.NewSQLiteStore(cmd.Context(), cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		t := table.New().Border(lipgloss.NormalBorder())

		if len(args) == 1 {
			tasks, err := store.GetRunTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks recorded for run %q", args[0])
			}
			t.Headers("#", "Task", "Status", "Duration", "Note")
			for _, task := range tasks {
				note := task.SkipReason
				if task.Error != "" {
					note = task.Error
				}
				t.Row(fmt.Sprint(task.Seq), task.Name, task.Status, task.Duration.Round(time.Millisecond).String(), note)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		}

		runs, err := store.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		t.Headers("Run", "Target", "Status", "Started", "Duration")
		for _, run := range runs {
			duration := ""
			if !run.FinishedAt.IsZero() {
				duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
			}
			t.Row(run.ID, run.Target, run.Status, run.StartedAt.Local().Format(time.DateTime), duration)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list, 0 for all")
}
