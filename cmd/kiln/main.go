package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aristath/kiln/internal/config"
	"github.com/aristath/kiln/internal/logging"
	"github.com/aristath/kiln/internal/script"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Global flags and the state PersistentPreRunE derives from them.
var (
	buildFile string
	logLevel  string
	logFormat string

	cfg    *config.KilnConfig
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "kiln",
	Short:         "Build scripts, task chains and their execution",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadDefault()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if cmd.Flags().Changed("file") {
			cfg.BuildFile = buildFile
		}
		logger = logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		slog.SetDefault(logger)
		return nil
	},
}

// printError renders err for the terminal. Analysis failures list one
// diagnostic per line, relative to the working directory.
func printError(w io.Writer, err error) {
	var analysis *script.AnalysisError
	if errors.As(err, &analysis) {
		fmt.Fprintf(w, "Error: failed to analyze script '%s'\n", analysis.Path)
		cwd, _ := os.Getwd()
		for _, line := range analysis.Render(cwd) {
			fmt.Fprintln(w, line)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// scriptOptions builds resolver options from configuration.
func scriptOptions() script.Options {
	return script.Options{
		DefaultScheme: cfg.Script.DefaultScheme,
		MaxDepth:      cfg.Script.MaxIncludeDepth,
		Logger:        logger,
	}
}

// relativeTo resolves path against the directory of base unless it is absolute.
func relativeTo(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(base), path)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kiln %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&buildFile, "file", "f", "", "Build file (default from config, kiln.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
