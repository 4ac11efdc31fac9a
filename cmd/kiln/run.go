package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aristath/kiln/internal/events"
	"github.com/aristath/kiln/internal/host"
	"github.com/aristath/kiln/internal/logging"
	"github.com/aristath/kiln/internal/orchestrator"
	"github.com/aristath/kiln/internal/persistence"
	"github.com/aristath/kiln/internal/tui"
)

var (
	runTUI       bool
	runExclusive bool
	runParallel  int
	runArgs      []string
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run [target]",
	Short: "Run a task and everything it depends on",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := cfg.Runner.Target
		if len(args) == 1 {
			target = args[0]
		}
		arguments, err := parseArgs(runArgs)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("parallel") {
			cfg.Runner.Parallelism = runParallel
		}

		// Log lines would tear the alternate screen apart.
		log := logger
		if runTUI {
			log = logging.Discard()
		}

		p, err := loadProject(log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			if err := p.processes.KillAll(); err != nil {
				log.Warn("error killing tool processes", "error", err)
			}
		}()

		opts := host.RunOptions{
			Concurrency: cfg.Runner.Parallelism,
			Exclusive:   runExclusive,
			Arguments:   arguments,
			Bus:         events.NewEventBus(),
		}
		defer opts.Bus.Close()

		if !cfg.History.Disabled && !runNoHistory {
			store, err := persistence.NewSQLiteStore(ctx, cfg.History.Path)
			if err != nil {
				log.Warn("run history unavailable", "error", err)
			} else {
				defer store.Close()
				opts.Recorder = store
			}
		}

		var report *orchestrator.Report
		if runTUI {
			report, err = runWithTUI(ctx, p.host, target, opts)
		} else {
			report, err = runPlain(ctx, cmd.OutOrStdout(), p.host, target, opts)
		}
		if report != nil {
			printSummary(cmd.OutOrStdout(), report)
		}
		return err
	},
}

// parseArgs turns repeated key=value flags into run arguments. A bare key
// is set to "true".
func parseArgs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", pair)
		}
		if !found {
			value = "true"
		}
		out[key] = value
	}
	return out, nil
}

// runPlain streams task headers and tool output to w while the run proceeds.
func runPlain(ctx context.Context, w io.Writer, h *host.Host, target string, opts host.RunOptions) (*orchestrator.Report, error) {
	sub := opts.Bus.Subscribe(events.TopicTask, 4096)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range sub {
			printEvent(w, evt)
		}
	}()

	report, err := h.Run(ctx, target, opts)
	opts.Bus.Close()
	<-done
	return report, err
}

func printEvent(w io.Writer, evt events.Event) {
	switch e := evt.(type) {
	case events.TaskStartedEvent:
		fmt.Fprintf(w, "\n%s\n", tui.StyleTitle.Render("==> "+e.Name))
	case events.TaskOutputEvent:
		fmt.Fprintf(w, "    %s\n", e.Line)
	case events.TaskSkippedEvent:
		fmt.Fprintf(w, "%s %s: %s\n", tui.StatusIcon("skipped"), e.ID, e.Reason)
	case events.TaskFailedEvent:
		suffix := ""
		if e.Continued {
			suffix = " (continuing)"
		}
		fmt.Fprintf(w, "%s %s: %v%s\n", tui.StatusIcon("failed"), e.ID, e.Err, suffix)
	}
}

// runWithTUI runs target behind the progress UI. Quitting the UI early
// interrupts the run.
func runWithTUI(ctx context.Context, h *host.Host, target string, opts host.RunOptions) (*orchestrator.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(tui.New(opts.Bus), tea.WithAltScreen(), tea.WithContext(ctx))

	type outcome struct {
		report *orchestrator.Report
		err    error
	}
	result := make(chan outcome, 1)
	go func() {
		report, err := h.Run(ctx, target, opts)
		result <- outcome{report, err}
	}()

	_, uiErr := program.Run()
	cancel()
	out := <-result
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return out.report, errors.Join(out.err, fmt.Errorf("tui: %w", uiErr))
	}
	return out.report, out.err
}

// printSummary renders one row per executed task.
func printSummary(w io.Writer, r *orchestrator.Report) {
	if len(r.Results) == 0 {
		return
	}
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		note := res.SkipReason
		if res.Error != nil {
			note = res.Error.Error()
		}
		rows = append(rows, []string{res.Name, res.Status.String(), res.Duration.Round(time.Millisecond).String(), note})
	}
	rows = append(rows, []string{"Total", "", r.Duration.Round(time.Millisecond).String(), ""})

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Task", "Status", "Duration", "Note").
		Rows(rows...)
	fmt.Fprintf(w, "\n%s\n", t)
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show progress in a terminal UI")
	runCmd.Flags().BoolVar(&runExclusive, "exclusive", false, "Run only the target, not its dependencies")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 1, "Run up to this many independent tasks at once")
	runCmd.Flags().StringArrayVarP(&runArgs, "arg", "a", nil, "Set a run argument (key=value), repeatable")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run")
}
