package scraper

import (
	"context"
	"errors"
	"fmt"

	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/extract"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/urlset"
)

// Catalog resolution modes.
const (
	ModeTable = "table"
	ModePage  = "page"
	ModeAuto  = "auto"
)

// ResolveCategories maps names to category URLs in request order. Names are
// canonicalised through the table first, so synonyms resolve too.
//
// When only some names resolve, the resolved ones are returned together with
// a *errors.CategoryNotFoundError naming the rest. When none resolve the
// slice is empty.
func (s *Scraper) ResolveCategories(ctx context.Context, names []string) ([]models.CategoryRef, error) {
	wanted := make([]string, 0, len(names))
	for _, n := range names {
		if c := s.catalog.Canonical(n); c != "" {
			wanted = append(wanted, c)
		}
	}
	wanted = urlset.Strings(wanted)
	if len(wanted) == 0 {
		return nil, errors.New("no categories requested")
	}

	found := make(map[string]string, len(wanted))
	mode := s.config.Catalog.Mode
	if mode == "" {
		mode = ModeAuto
	}

	if mode == ModeTable || mode == ModeAuto {
		for _, name := range wanted {
			if ref, ok := s.catalog.Resolve(name); ok {
				found[name] = ref.URL
			}
		}
	}

	if mode == ModePage || mode == ModeAuto {
		var pending []string
		for _, name := range wanted {
			if _, ok := found[name]; !ok {
				pending = append(pending, name)
			}
		}
		if len(pending) > 0 {
			links, err := s.categoriesFromPage(ctx, pending)
			if err != nil && mode == ModePage && links == nil {
				return nil, err
			}
			for name, u := range links {
				found[name] = u
			}
		}
	}

	refs := make([]models.CategoryRef, 0, len(found))
	var missing []string
	for _, name := range wanted {
		if u, ok := found[name]; ok {
			refs = append(refs, models.CategoryRef{Name: name, URL: u})
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return refs, &errs.CategoryNotFoundError{Missing: missing}
	}
	return refs, nil
}

// categoriesFromPage matches names against the anchor text of the catalog
// root page.
func (s *Scraper) categoriesFromPage(ctx context.Context, names []string) (map[string]string, error) {
	root := s.config.Site.CatalogURL
	doc, err := s.fetchDocument(ctx, root)
	if err != nil {
		s.logger.WithError(err).WithField("url", root).Warn("Failed to fetch catalog page")
		return nil, fmt.Errorf("failed to fetch catalog page: %w", err)
	}
	links, err := extract.FindCategoryLinks(doc, names)
	if err != nil {
		s.logger.WithError(err).Debug("Catalog page is missing some categories")
	}
	return links, err
}
