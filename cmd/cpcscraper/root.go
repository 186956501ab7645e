package main

import (
	"fmt"
	"os"
	"runtime"

	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information, set with -ldflags at build time.
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd runs a category scrape when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "cpcscraper",
	Short: "Harvest product images from the CPC lubricant catalog",
	Long: `cpcscraper downloads product images from the CPC lubricant catalog.

It resolves the requested categories, walks every product detail page,
extracts image URLs from <img> tags, inline styles and data attributes,
and saves them under <output>/<category>/<product>/.

Features:
  - Category table with synonyms, or lookup on the catalog page
  - CSS selector or XPath scoping of image discovery
  - Concurrent downloads with retry and an optional rate cap
  - Idempotent reruns and checkpoint resume
  - Session profiles for sites behind a challenge page
  - Terminal UI, desktop notifications and Markdown run reports`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(!noColor)
		logger.Version = version
	},
	RunE: runScrape,
}

// Execute runs the root command and exits 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default: ./.cpcscraper.yaml or $XDG_CONFIG_HOME/cpcscraper/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, disabled)")
	pf.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress progress and summaries")
	pf.BoolVarP(&verbose, "verbose", "v", false, "print one line per finished download")

	addHarvestFlags(rootCmd)
	addCategoryFlags(rootCmd)

	rootCmd.SetVersionTemplate(`cpcscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
