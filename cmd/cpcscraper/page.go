package main

import (
	"context"
	"fmt"

	"cpcscraper/pkg/models"
	"cpcscraper/pkg/scraper"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
)

var pageCategory string

// pageCmd harvests a single page and, optionally, the pages it links to.
var pageCmd = &cobra.Command{
	Use:   "page [url]",
	Short: "Download the images of a single page",
	Long: `Download every same-origin image of one page into the output directory.

Without a URL the listing page of --category is used. Use --selector or
--xpath to restrict discovery to part of the page; when the expression
matches nothing the whole page is searched. With --follow-details the
page's same-origin links are visited one level deep.`,
	Example: `  # Images of the grease listing page
  cpcscraper page --category 滑脂

  # Only the product gallery, following detail links
  cpcscraper page https://cpclube.cpc.com.tw/C_Products.aspx?n=7464&_CSN=76 \
      --selector ".product img" --follow-details --list-only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPage,
}

func init() {
	rootCmd.AddCommand(pageCmd)
	addHarvestFlags(pageCmd)
	pageCmd.Flags().StringVar(&pageCategory, "category", "車輛用油", "category whose listing page is used when no URL is given")
}

func runPage(cmd *cobra.Command, args []string) error {
	cfg, err := prepare(cmd)
	if err != nil {
		return err
	}

	var startURL string
	if len(args) == 1 {
		startURL = args[0]
	}

	if !cfg.UI.Quiet && !cfg.UI.TUI {
		ui.PrintBanner()
	}

	return harvest(cfg, func(ctx context.Context, s *scraper.Scraper) (*models.Summary, error) {
		if startURL == "" {
			ref, ok := s.Catalog().Resolve(pageCategory)
			if !ok {
				return nil, fmt.Errorf("category %q is not in the category table; pass a URL instead", pageCategory)
			}
			startURL = ref.URL
		}
		if !cfg.UI.Quiet && !cfg.UI.TUI {
			ui.PrintInfo("Page", startURL)
		}
		return s.RunPage(ctx, startURL)
	})
}
