package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var tasksPlan bool

var tasksCmd = &cobra.Command{
	Use:   "tasks [target]",
	Short: "List the build file's tasks, or the plan for a target",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(logger)
		if err != nil {
			return err
		}
		if err := p.host.Configure(); err != nil {
			return err
		}
		dag := p.host.DAG()

		if tasksPlan || len(args) == 1 {
			target := cfg.Runner.Target
			if len(args) == 1 {
				target = args[0]
			}
			plan, err := dag.Plan(target, false)
			if err != nil {
				return err
			}
			for i, id := range plan {
				task, _ := dag.Get(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, task.Name)
			}
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Task", "Depends on", "Description")
		for _, task := range dag.Tasks() {
			t.Row(task.Name, strings.Join(dag.Dependencies(task.ID), ", "), task.Description)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksPlan, "plan", false, "Print the execution order for the target instead")
}
