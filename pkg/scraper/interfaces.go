package scraper

import (
	"context"

	"cpcscraper/pkg/fetcher"
)

// PageFetcher is the network side of a run. *fetcher.Fetcher satisfies it.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchBinary(ctx context.Context, url string) (*fetcher.Payload, error)
}

// RobotsChecker decides whether a URL may be crawled.
type RobotsChecker interface {
	Allowed(ctx context.Context, url string) bool
}
