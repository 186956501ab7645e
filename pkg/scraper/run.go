package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"cpcscraper/internal/downloader"
	"cpcscraper/pkg/checkpoint"
	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/extract"
	"cpcscraper/pkg/manifest"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/naming"
	"cpcscraper/pkg/ratelimit"
	"cpcscraper/pkg/urlset"
)

// productPlan is one product with the images to fetch for it.
type productPlan struct {
	Category string
	Product  models.ProductRef
	Images   []manifest.Entry
}

// Run harvests every configured category.
func (s *Scraper) Run(ctx context.Context) (*models.Summary, error) {
	cfg := s.config
	summary := models.NewSummary("scrape", cfg.Output.Directory)
	summary.StartURL = cfg.Site.CatalogURL

	if err := s.checkRobots(ctx, cfg.Site.CatalogURL); err != nil {
		return finish(summary), err
	}

	s.progress.Stage("Resolving %d categories", len(cfg.Catalog.Categories))
	cats, err := s.ResolveCategories(ctx, cfg.Catalog.Categories)
	if len(cats) == 0 {
		if err == nil {
			err = &errs.CategoryNotFoundError{Missing: cfg.Catalog.Categories}
		}
		return finish(summary), err
	}
	if err != nil {
		s.logger.WithError(err).Warn("Continuing with the categories that resolved")
		summary.Problems = append(summary.Problems, err.Error())
	}
	for _, c := range cats {
		summary.Categories = append(summary.Categories, c.Name)
		s.logger.InfoWithFields("Category resolved", map[string]interface{}{"category": c.Name, "url": c.URL})
	}

	var mgr *checkpoint.Manager
	var cp *checkpoint.Checkpoint
	if !cfg.Download.ListOnly {
		mgr, cp, err = s.openCheckpoint(summary.Categories)
		if err != nil {
			return finish(summary), err
		}
	}

	plans, err := s.discover(ctx, cats, cp, summary)
	if err != nil {
		return finish(summary), err
	}

	man := manifest.New(cfg.Site.CatalogURL)
	for _, p := range plans {
		man.Append(p.Images...)
	}
	summary.Candidates = man.Len()
	s.saveManifest(man)

	if cfg.Download.ListOnly {
		s.printListing(man)
		return finish(summary), nil
	}

	jobs := s.categoryJobs(plans)
	tracker := newProductTracker(jobs, mgr, cp, s.logger)
	results, runErr := s.download(ctx, jobs, tracker.observe)
	foldProducts(summary, plans, results)

	if runErr == nil && summary.FailedCount() == 0 && mgr != nil {
		if err := mgr.Delete(); err != nil {
			s.logger.WithError(err).Warn("Failed to remove checkpoint")
		}
	}
	s.notify("cpcscraper", "%d saved, %d existing, %d failed",
		summary.Counts[models.StatusOK], summary.Counts[models.StatusExists], summary.FailedCount())
	return finish(summary), runErr
}

// discover enumerates the products of each category and extracts their
// images. It fails only when no category produced a single product.
func (s *Scraper) discover(ctx context.Context, cats []models.CategoryRef, cp *checkpoint.Checkpoint, summary *models.Summary) ([]productPlan, error) {
	var plans []productPlan
	var categoryErrs []error
	productsSeen := 0

	for _, cat := range cats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.progress.Stage("Category %s", cat.Name)
		products, err := s.EnumerateProducts(ctx, cat)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WithError(err).WithField("category", cat.Name).Warn("Skipping category")
			categoryErrs = append(categoryErrs, err)
			summary.Problems = append(summary.Problems, fmt.Sprintf("%s: %v", cat.Name, err))
			continue
		}
		productsSeen += len(products)
		s.logger.InfoWithFields("Products found", map[string]interface{}{"category": cat.Name, "products": len(products)})

		for _, p := range products {
			if cp != nil && cp.IsProductComplete(checkpoint.ProductKey(cat.Name, p.Name)) {
				summary.Resumed++
				continue
			}
			s.progress.Stage("%s / %s", cat.Name, p.Name)
			images, err := s.ProductImages(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.WithError(err).WithField("product", p.Name).Warn("Skipping product")
				summary.Problems = append(summary.Problems, fmt.Sprintf("%s: %v", p.Name, err))
				continue
			}
			if len(images) == 0 {
				s.logger.WithFields(map[string]interface{}{"product": p.Name, "url": p.DetailURL}).Warn("No images found")
				summary.Problems = append(summary.Problems, fmt.Sprintf("%s: no images at %s", p.Name, p.DetailURL))
				continue
			}
			plans = append(plans, productPlan{Category: cat.Name, Product: p, Images: images})
		}
	}

	if productsSeen == 0 {
		return nil, errors.Join(categoryErrs...)
	}
	return plans, nil
}

// EnumerateProducts lists the products linked from a category page. With
// follow-details on, a page without product links yields its same-origin
// links as pseudo-products named after their URL.
func (s *Scraper) EnumerateProducts(ctx context.Context, cat models.CategoryRef) ([]models.ProductRef, error) {
	doc, err := s.fetchDocument(ctx, cat.URL)
	if err != nil {
		return nil, err
	}
	set, err := extract.FindProductLinks(doc, s.config.Site.DetailMarker)
	if err == nil {
		return set.Products(), nil
	}

	var notFound *errs.NoProductsFoundError
	if !errors.As(err, &notFound) || !s.config.Extract.FollowDetails {
		return nil, err
	}
	links := s.followLinks(doc)
	if len(links) == 0 {
		return nil, err
	}
	products := make([]models.ProductRef, len(links))
	for i, link := range links {
		products[i] = models.ProductRef{Name: pageName(link), DetailURL: link}
	}
	s.logger.InfoWithFields("No product links, following page links", map[string]interface{}{
		"category": cat.Name,
		"links":    len(links),
	})
	return products, nil
}

// ProductImages returns the same-origin, predicate-approved images of a
// product detail page.
func (s *Scraper) ProductImages(ctx context.Context, p models.ProductRef) ([]manifest.Entry, error) {
	doc, err := s.fetchDocument(ctx, p.DetailURL)
	if err != nil {
		return nil, err
	}
	entries := sameOriginEntries(s.pageImages(doc), doc.Base)

	kept := entries[:0]
	for _, e := range entries {
		if s.predicate(e.Image) {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

// followLinks lists a page's same-origin links, minus the page itself,
// capped at max-detail-pages.
func (s *Scraper) followLinks(doc *extract.Document) []string {
	self := doc.Base.String()
	var out []string
	for _, link := range extract.FindSameOriginLinks(doc) {
		if link == self {
			continue
		}
		if limit := s.config.Extract.MaxDetailPages; limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, link)
	}
	return out
}

// categoryJobs lays plans out as <output>/<category>/<product>/<file>.
func (s *Scraper) categoryJobs(plans []productPlan) []downloader.Job {
	var jobs []downloader.Job
	for _, p := range plans {
		dir := filepath.Join(s.config.Output.Directory, naming.DirName(p.Category), naming.DirName(p.Product.Name))
		for i, e := range p.Images {
			job := downloader.Job{
				Category: p.Category,
				Product:  p.Product.Name,
				URL:      e.Image.URL,
				Dir:      dir,
			}
			if s.config.Download.Numbered {
				job.Filename = naming.NumberedFilename(i+1, e.Image.URL)
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// download runs jobs on the worker pool.
func (s *Scraper) download(ctx context.Context, jobs []downloader.Job, onResult func(downloader.Result)) ([]downloader.Result, error) {
	var limiter ratelimit.Limiter
	if rpm := s.config.RateLimit.RequestsPerMinute; rpm > 0 {
		limiter = ratelimit.PerMinute(rpm, s.config.RateLimit.BurstSize)
	}
	pool := downloader.NewWorkerPool(s.config.Download.Workers, s.downloads, limiter, s.progress, s.logger)
	if onResult != nil {
		pool.OnResult(onResult)
	}

	s.progress.Stage("Downloading %d images", len(jobs))
	s.progress.SetTotal(len(jobs))
	return pool.Run(ctx, jobs)
}

// openCheckpoint loads or starts the checkpoint for this run.
func (s *Scraper) openCheckpoint(categories []string) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	cfg := s.config
	key := checkpoint.RunKey("scrape", cfg.Output.Directory, categories)
	mgr, err := s.checkpoint(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}

	resume := cfg.Download.Resume && !cfg.Download.ForceRestart
	if !resume && mgr.Exists() && !cfg.Download.ForceRestart {
		s.logger.Info("A previous run was interrupted; pass --resume to continue it or --force-restart to discard it")
	}
	cp, resumed, err := mgr.LoadOrCreate(resume, key, cfg.Output.Directory, categories)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare checkpoint: %w", err)
	}
	if resumed {
		s.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"completed_products": len(cp.CompletedProducts),
			"total_downloaded":   cp.TotalDownloaded,
		})
	}
	return mgr, cp, nil
}

// saveManifest writes candidates.json when enabled. Failures are logged.
func (s *Scraper) saveManifest(man *manifest.Manifest) {
	if !s.config.Output.Manifest {
		return
	}
	path, err := man.Save(s.config.Output.Directory)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to save manifest")
		return
	}
	s.logger.InfoWithFields("Manifest saved", map[string]interface{}{"path": path, "candidates": man.Len()})
}

// foldProducts adds every result to the summary and builds the
// per-product results in discovery order.
func foldProducts(summary *models.Summary, plans []productPlan, results []downloader.Result) {
	byKey := make(map[string]*models.DownloadResult, len(plans))
	order := make([]string, 0, len(plans))
	for _, p := range plans {
		key := checkpoint.ProductKey(p.Category, p.Product.Name)
		if _, ok := byKey[key]; ok {
			continue
		}
		byKey[key] = &models.DownloadResult{Category: p.Category, Product: p.Product.Name, Images: []string{}}
		order = append(order, key)
	}

	for _, r := range results {
		summary.Record(r.Job.Product, r.Outcome)
		dr, ok := byKey[checkpoint.ProductKey(r.Job.Category, r.Job.Product)]
		if !ok {
			continue
		}
		dr.Outcomes = append(dr.Outcomes, r.Outcome)
		switch {
		case r.Outcome.Status == models.StatusOK:
			dr.Images = append(dr.Images, r.Outcome.Path)
		case r.Outcome.Status == models.StatusExists:
			dr.Skipped++
		default:
			dr.Failed++
		}
	}

	for _, key := range order {
		if dr := byKey[key]; len(dr.Outcomes) > 0 {
			summary.Products = append(summary.Products, *dr)
		}
	}
}

// sameOriginEntries drops entries whose image is on another host than
// ref and deduplicates by image URL.
func sameOriginEntries(entries []manifest.Entry, ref *url.URL) []manifest.Entry {
	kept := make([]manifest.Entry, 0, len(entries))
	for _, e := range entries {
		if urlset.IsSameOrigin(e.Image.URL, ref) {
			kept = append(kept, e)
		}
	}
	return urlset.Dedupe(kept, func(e manifest.Entry) string { return e.Image.URL })
}

// pageName labels a followed link by its path and query.
func pageName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return naming.SanitizeName(link)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if u.RawQuery != "" {
		name += "_" + u.RawQuery
	}
	return naming.SanitizeName(name)
}

func finish(s *models.Summary) *models.Summary {
	s.Finished = time.Now()
	return s
}
