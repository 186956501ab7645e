package scraper

import (
	"context"
	"errors"
	"fmt"

	"cpcscraper/internal/downloader"
	"cpcscraper/pkg/manifest"
	"cpcscraper/pkg/models"
)

// ErrNoCandidates means a page harvest found no images at all.
var ErrNoCandidates = errors.New("no image candidates found")

// RunPage harvests the images of startURL into the output directory. The
// configured scope narrows discovery on every visited page; with
// follow-details its same-origin links are visited one level deep.
// Candidates from other hosts are dropped and duplicates removed.
func (s *Scraper) RunPage(ctx context.Context, startURL string) (*models.Summary, error) {
	cfg := s.config
	summary := models.NewSummary("page", cfg.Output.Directory)
	summary.StartURL = startURL

	if err := s.checkRobots(ctx, startURL); err != nil {
		return finish(summary), err
	}

	s.progress.Stage("Fetching %s", startURL)
	doc, err := s.fetchDocument(ctx, startURL)
	if err != nil {
		return finish(summary), fmt.Errorf("failed to fetch start page: %w", err)
	}
	entries := s.pageImages(doc)

	if cfg.Extract.FollowDetails {
		links := s.followLinks(doc)
		s.progress.Stage("Following %d links", len(links))
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return finish(summary), err
			}
			d, err := s.fetchDocument(ctx, link)
			if err != nil {
				if ctx.Err() != nil {
					return finish(summary), ctx.Err()
				}
				s.logger.WithError(err).WithField("url", link).Warn("Skipping linked page")
				summary.Problems = append(summary.Problems, fmt.Sprintf("%s: %v", link, err))
				continue
			}
			entries = append(entries, s.pageImages(d)...)
		}
	}

	entries = sameOriginEntries(entries, doc.Base)
	man := manifest.New(startURL)
	man.Append(entries...)
	summary.Candidates = man.Len()
	s.saveManifest(man)
	s.printListing(man)

	if man.Len() == 0 {
		return finish(summary), fmt.Errorf("%s: %w", startURL, ErrNoCandidates)
	}
	if cfg.Download.ListOnly {
		return finish(summary), nil
	}

	jobs := make([]downloader.Job, len(entries))
	for i, e := range entries {
		jobs[i] = downloader.Job{Product: e.Source, URL: e.Image.URL, Dir: cfg.Output.Directory}
	}
	results, runErr := s.download(ctx, jobs, nil)
	for _, r := range results {
		summary.Record(r.Job.Product, r.Outcome)
	}

	s.notify("cpcscraper", "%d saved, %d existing, %d failed",
		summary.Counts[models.StatusOK], summary.Counts[models.StatusExists], summary.FailedCount())
	return finish(summary), runErr
}
