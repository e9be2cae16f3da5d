package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/srg/imurec/internal/export"
	"github.com/srg/imurec/internal/recording"
)

// preprocessCmd represents the preprocess command
var preprocessCmd = &cobra.Command{
	Use:   "preprocess <recording.json>",
	Short: "Write the preprocessed companion of a raw recording",
	Long: `Converts a raw recording to floating point axes with per-sample vector magnitude
and writes it next to the input as <label><startTime>_PreProcessed.json.

Example:
  imurec preprocess ~/GSD_Recordings/wave1700000000000.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPreprocess,
}

var preprocessOutDir string

func init() {
	preprocessCmd.Flags().StringVar(&preprocessOutDir, "out", "", "Output directory (default: next to the input)")
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setupCommand(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	g, err := export.Load(args[0])
	if err != nil {
		return err
	}

	outDir := preprocessOutDir
	if outDir == "" {
		outDir = filepath.Dir(args[0])
	}

	exporter := export.New(outDir, cfg.MaxNameProbes, logger)
	path, err := exporter.WritePreprocessedSync(recording.Preprocess(g))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
