package main

import (
	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
	"github.com/aakaka525-design/manga-translator-ui-sub001/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "mangatl",
	Short: "Comic page translation with a split detect/translate/render pipeline",
	Long: `mangatl translates comic pages. A GPU worker detects text regions and
renders translations back onto the page; the orchestrator sits in front of
it, translates the detected text with a single serialized translator and
collects pages into chapters.

The split pipeline:
  - worker detect returns regions and a cached task
  - the orchestrator translates the regions
  - worker render paints them using the cached task
  - a lost task falls back to the worker's unified page path`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.mangatl/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "mangatl home directory (default: ~/.mangatl)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
