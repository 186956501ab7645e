package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories [names...]",
	Short: "List the category table or resolve category names",
	Long: `Without arguments, print the category table with each listing URL.

With names, resolve them the way a scrape would, honouring --catalog-mode:
synonyms and full-width spellings map to the canonical name, and names the
table does not know are looked up on the catalog page.`,
	Example: `  cpcscraper categories
  cpcscraper categories grease "vehicle oil" 海運用油
  cpcscraper categories 基礎油 --catalog-mode page`,
	RunE: runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.Flags().StringVar(&catalogMode, "catalog-mode", defaults.Catalog.Mode, "category resolution: table, page or auto")
	categoriesCmd.Flags().StringVar(&profileName, "profile", "", "stored session profile to send with requests")
}

func runCategories(cmd *cobra.Command, args []string) error {
	cfg, err := prepare(cmd)
	if err != nil {
		return err
	}
	s, err := newScraper(cfg, ui.NopProgress{})
	if err != nil {
		return err
	}

	if len(args) == 0 {
		for _, c := range s.Catalog().Categories() {
			fmt.Fprintf(ui.Out, "%s\t%s\n", ui.Yellow(c.Name), c.URL)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	refs, err := s.ResolveCategories(ctx, args)
	for _, r := range refs {
		fmt.Fprintf(ui.Out, "%s\t%s\n", ui.Green(r.Name), r.URL)
	}
	var notFound *errs.CategoryNotFoundError
	if errors.As(err, &notFound) {
		for _, name := range notFound.Missing {
			fmt.Fprintf(ui.Out, "%s\t%s\n", ui.Red(name), ui.Dim("not found"))
		}
	}
	return err
}
