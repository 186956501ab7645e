package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cpcscraper/internal/downloader"
	"cpcscraper/pkg/catalog"
	"cpcscraper/pkg/checkpoint"
	"cpcscraper/pkg/config"
	"cpcscraper/pkg/extract"
	"cpcscraper/pkg/fetcher"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/manifest"
	"cpcscraper/pkg/ratelimit"
	"cpcscraper/pkg/robots"
	"cpcscraper/pkg/storage"
	"cpcscraper/pkg/ui"
)

// ErrDisallowed is returned when robots.txt forbids the start URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// listingLimit caps the candidates printed by a listing.
const listingLimit = 40

// Scraper orchestrates category and page harvests
type Scraper struct {
	config     *config.Config
	fetcher    PageFetcher
	downloads  downloader.Downloader
	catalog    *catalog.Table
	robots     RobotsChecker
	progress   ui.Progress
	notifier   *ui.Notifier
	logger     logger.Logger
	out        io.Writer
	extractor  *extract.ImageExtractor
	scope      extract.Scope
	predicate  extract.Predicate
	pacer      ratelimit.Limiter
	checkpoint func(runKey string) (*checkpoint.Manager, error)
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithFetcher replaces the HTTP fetcher built from the configuration.
func WithFetcher(f PageFetcher) Option { return func(s *Scraper) { s.fetcher = f } }

// WithDownloader replaces the storage manager.
func WithDownloader(d downloader.Downloader) Option { return func(s *Scraper) { s.downloads = d } }

// WithCatalog sets the category table.
func WithCatalog(t *catalog.Table) Option { return func(s *Scraper) { s.catalog = t } }

// WithRobots sets the robots.txt checker. A nil checker allows everything.
func WithRobots(r RobotsChecker) Option { return func(s *Scraper) { s.robots = r } }

// WithProgress sets the progress display.
func WithProgress(p ui.Progress) Option { return func(s *Scraper) { s.progress = p } }

// WithNotifier enables a desktop notification when a run ends.
func WithNotifier(n *ui.Notifier) Option { return func(s *Scraper) { s.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Scraper) { s.logger = l } }

// WithOutput sets where listings go. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(s *Scraper) { s.out = w } }

// WithCheckpointDir stores checkpoints in dir instead of the XDG data
// directory.
func WithCheckpointDir(dir string) Option {
	return func(s *Scraper) {
		s.checkpoint = func(key string) (*checkpoint.Manager, error) {
			return checkpoint.NewManagerAt(dir, key)
		}
	}
}

// New builds a Scraper from cfg. Collaborators not supplied as options are
// built from the configuration: a shared fetcher, a storage manager on top
// of it, and a robots.txt checker when robots are respected.
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	s := &Scraper{
		config:     cfg,
		progress:   ui.NopProgress{},
		out:        os.Stdout,
		extractor:  extract.NewImageExtractor(),
		pacer:      ratelimit.NewInterval(cfg.HTTP.Delay),
		checkpoint: checkpoint.NewManager,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	s.logger = s.logger.WithField("component", "scraper")

	scope, err := buildScope(cfg.Extract)
	if err != nil {
		return nil, err
	}
	s.scope = scope
	s.predicate = extract.NewPredicate(cfg.Extract.PathHints, cfg.Extract.ExcludeExtensions)

	if s.catalog == nil {
		table, err := catalog.Load(cfg.Catalog.TableFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load category table: %w", err)
		}
		s.catalog = table
	}

	if s.fetcher == nil {
		s.fetcher = fetcher.New(fetcher.Options{
			Timeout:   cfg.HTTP.Timeout,
			Attempts:  cfg.HTTP.Retries,
			Delay:     cfg.HTTP.Delay,
			UserAgent: cfg.HTTP.UserAgent,
			Insecure:  cfg.HTTP.Insecure,
			Headers:   cfg.HTTP.Headers,
			Logger:    s.logger,

			TransientOnly: cfg.HTTP.TransientOnly,
		})
	}
	if s.downloads == nil {
		s.downloads = storage.NewManager(s.fetcher, s.logger)
	}
	if s.robots == nil && cfg.Site.RespectRobots {
		if p, ok := s.fetcher.(robots.Prober); ok {
			s.robots = robots.NewChecker(p, cfg.HTTP.UserAgent, s.logger)
		}
	}
	return s, nil
}

// buildScope turns the configured selector or XPath into a Scope. XPath
// wins when both are set.
func buildScope(cfg config.ExtractConfig) (extract.Scope, error) {
	switch {
	case cfg.XPath != "":
		scope, err := extract.NewXPathScope(cfg.XPath)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath: %w", err)
		}
		return scope, nil
	case cfg.Selector != "":
		scope, err := extract.ParseScope(cfg.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector: %w", err)
		}
		return scope, nil
	default:
		return nil, nil
	}
}

// Catalog is the category table in use.
func (s *Scraper) Catalog() *catalog.Table {
	return s.catalog
}

// checkRobots fails with ErrDisallowed when robots.txt forbids rawURL.
func (s *Scraper) checkRobots(ctx context.Context, rawURL string) error {
	if s.robots == nil || s.robots.Allowed(ctx, rawURL) {
		return nil
	}
	return fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
}

// fetchDocument waits out the discovery delay, then fetches and parses a page.
func (s *Scraper) fetchDocument(ctx context.Context, rawURL string) (*extract.Document, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	body, err := s.fetcher.FetchText(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := extract.ParseString(body, rawURL)
	if err != nil {
		return nil, err
	}
	s.logger.DebugWithFields("Page parsed", map[string]interface{}{
		"url":         rawURL,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return doc, nil
}

// pageImages runs the scoped extraction, falling back to the whole document
// when the scope matches nothing.
func (s *Scraper) pageImages(doc *extract.Document) []manifest.Entry {
	cands := s.extractor.Extract(doc, s.scope)
	if len(cands) == 0 && s.scope != nil {
		s.logger.DebugWithFields("Scope matched no images, using whole page", map[string]interface{}{
			"scope": s.scope.String(),
			"url":   doc.Base.String(),
		})
		cands = s.extractor.Extract(doc, nil)
	}
	out := make([]manifest.Entry, len(cands))
	for i, c := range cands {
		out[i] = manifest.Entry{Source: doc.Base.String(), Image: c}
	}
	return out
}

// notify sends the end-of-run notification when enabled.
func (s *Scraper) notify(title, format string, args ...interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(title, fmt.Sprintf(format, args...))
	}
}
