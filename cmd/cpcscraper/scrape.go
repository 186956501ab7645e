package main

import (
	"context"
	"strings"

	"cpcscraper/pkg/models"
	"cpcscraper/pkg/scraper"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
)

// scrapeCmd harvests whole categories. It is also the root command's action.
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Download the product images of catalog categories",
	Long: `Download the product images of one or more catalog categories.

Each category is resolved to its listing page, every product detail page
linked from it is fetched, and the images found there are saved as
<output>/<category>/<product>/<file>. Files that already exist are not
downloaded again, so an interrupted run can simply be repeated.`,
	Example: `  # All five default categories into ./downloads
  cpcscraper

  # Two categories, eight workers, numbered files
  cpcscraper scrape --categories 車輛用油,grease --workers 8 --numbered

  # Only list what would be downloaded
  cpcscraper scrape --categories 滑脂 --list-only

  # Continue an interrupted run
  cpcscraper scrape --resume`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	addHarvestFlags(scrapeCmd)
	addCategoryFlags(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := prepare(cmd)
	if err != nil {
		return err
	}

	if !cfg.UI.Quiet && !cfg.UI.TUI {
		ui.PrintBanner()
		ui.PrintInfo("Categories", strings.Join(cfg.Catalog.Categories, ", "))
		ui.PrintInfo("Output", cfg.Output.Directory)
	}

	return harvest(cfg, func(ctx context.Context, s *scraper.Scraper) (*models.Summary, error) {
		return s.Run(ctx)
	})
}
