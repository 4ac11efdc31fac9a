package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aristath/kiln/internal/script"
)

var (
	composeOut      string
	composeMetadata bool
	composeMaxDepth int
)

// scriptMetadata is the YAML shape printed by compose --metadata.
type scriptMetadata struct {
	Script       string   `yaml:"script"`
	Loaded       []string `yaml:"loaded,omitempty"`
	Depth        int      `yaml:"depth"`
	References   []string `yaml:"references,omitempty"`
	Namespaces   []string `yaml:"namespaces,omitempty"`
	UsingAliases []string `yaml:"usingAliases,omitempty"`
	Addins       []string `yaml:"addins,omitempty"`
	Tools        []string `yaml:"tools,omitempty"`
}

var composeCmd = &cobra.Command{
	Use:   "compose <script>",
	Short: "Resolve a build script and its loads into one composed script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := scriptOptions()
		if cmd.Flags().Changed("max-depth") {
			opts.MaxDepth = composeMaxDepth
		}

		result, err := script.Analyze(args[0], opts)
		if err != nil {
			return err
		}

		if composeMetadata {
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(metadataOf(result))
		}

		text := strings.Join(result.Lines, "\n") + "\n"
		if composeOut == "" || composeOut == "-" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		}
		if err := os.WriteFile(composeOut, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write composed script: %w", err)
		}
		logger.Info("composed script", "script", result.Root.Path, "out", composeOut, "lines", len(result.Lines))
		return nil
	},
}

func metadataOf(r *script.Result) scriptMetadata {
	md := scriptMetadata{
		Script:       r.Root.Path,
		References:   r.References,
		Namespaces:   r.Namespaces,
		UsingAliases: r.UsingAliases,
		Depth:        r.Root.Depth(),
	}
	r.Root.Walk(func(u *script.Unit) {
		if u != r.Root {
			md.Loaded = append(md.Loaded, u.Path)
		}
	})
	for _, a := range r.Addins {
		md.Addins = append(md.Addins, a.String())
	}
	for _, t := range r.Tools {
		md.Tools = append(md.Tools, t.String())
	}
	return md
}

func init() {
	composeCmd.Flags().StringVarP(&composeOut, "out", "o", "", "Write the composed script to this file instead of stdout")
	composeCmd.Flags().BoolVar(&composeMetadata, "metadata", false, "Print references, namespaces, addins and tools as YAML instead")
	composeCmd.Flags().IntVar(&composeMaxDepth, "max-depth", 0, "Maximum load nesting, 0 for unlimited (overrides config)")
}
