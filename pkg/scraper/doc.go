// Package scraper drives a harvest run.
//
// Category mode (Run) resolves the requested categories, enumerates the
// product links of each category page, extracts the images of every product
// detail page and downloads them into <output>/<category>/<product>/.
// Page mode (RunPage) harvests the images of a single start page, optionally
// following its same-origin links one level deep, into <output>/.
//
// Discovery requests are sequential and separated by the configured delay.
// Downloads run on a bounded worker pool. A failure scoped to one category,
// product or page is logged, recorded in the summary and skipped; only
// "nothing resolved" and "nothing found" end a run with an error.
package scraper
