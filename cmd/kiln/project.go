package main

import (
	"fmt"
	"log/slog"

	"github.com/aristath/kiln/internal/buildfile"
	"github.com/aristath/kiln/internal/host"
	"github.com/aristath/kiln/internal/script"
	"github.com/aristath/kiln/internal/tools"
)

// project is a loaded build file with its tasks registered on a host.
type project struct {
	file      *buildfile.File
	host      *host.Host
	processes *tools.ProcessManager
}

// loadProject reads the configured build file, analyses its script when it
// names one and registers its tasks. log is used by everything the run starts.
func loadProject(log *slog.Logger) (*project, error) {
	file, err := buildfile.LoadFile(cfg.BuildFile)
	if err != nil {
		return nil, err
	}

	var analysed *script.Result
	if file.Script != "" {
		opts := scriptOptions()
		opts.Logger = log
		analysed, err = script.Analyze(relativeTo(cfg.BuildFile, file.Script), opts)
		if err != nil {
			return nil, err
		}
		log.Debug("analysed script", "script", analysed.Root.Path,
			"addins", len(analysed.Addins), "tools", len(analysed.Tools))
	}

	pm := tools.NewProcessManager()
	h := host.New(host.Options{
		Tools: tools.NewRunner(tools.Options{
			Tools:     cfg.Tools,
			Processes: pm,
			Logger:    log,
		}),
		Script: analysed,
		Logger: log,
	})
	if err := buildfile.Apply(h, file); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.BuildFile, err)
	}
	return &project{file: file, host: h, processes: pm}, nil
}
