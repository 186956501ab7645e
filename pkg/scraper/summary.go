package scraper

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cpcscraper/pkg/manifest"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/ui"
)

// printListing prints the candidate count and the first candidates.
func (s *Scraper) printListing(man *manifest.Manifest) {
	WriteListing(s.out, man, listingLimit)
}

// WriteListing prints up to limit candidates of man.
func WriteListing(w io.Writer, man *manifest.Manifest, limit int) {
	fmt.Fprintf(w, "Found %d image candidates.\n", man.Len())
	for i, e := range man.Candidates {
		if i >= limit {
			fmt.Fprintf(w, "... and %d more\n", man.Len()-limit)
			break
		}
		fmt.Fprintf(w, "[%d] source: %s\n", i+1, e.Source)
		fmt.Fprintf(w, "    url : %s\n", ui.Cyan(e.Image.URL))
		fmt.Fprintf(w, "    alt : %s\n", clip(e.Image.Alt, 140))
		fmt.Fprintf(w, "    node: %s\n", ui.Dim(clip(e.Image.Node, 200)))
	}
}

// WriteSummary prints the end-of-run counts and the first failures.
func WriteSummary(w io.Writer, s *models.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Magenta("Summary"))

	parts := make([]string, 0, len(models.Statuses))
	for _, status := range models.Statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", status, s.Counts[status]))
	}
	fmt.Fprintf(w, "  %s (%d total, %s)\n", strings.Join(parts, " "), s.Total(), s.Duration().Round(time.Millisecond))
	if s.Candidates > 0 {
		fmt.Fprintf(w, "  candidates: %d\n", s.Candidates)
	}
	if s.Resumed > 0 {
		fmt.Fprintf(w, "  products skipped by resume: %d\n", s.Resumed)
	}
	for _, p := range s.Products {
		fmt.Fprintf(w, "  %s / %s: %d saved, %d skipped", p.Category, p.Product, len(p.Images), p.Skipped)
		if p.Failed > 0 {
			fmt.Fprintf(w, ", %s", ui.Red(fmt.Sprintf("%d failed", p.Failed)))
		}
		fmt.Fprintln(w)
	}

	if len(s.Failures) > 0 {
		fmt.Fprintln(w, ui.Yellow(fmt.Sprintf("  first %d failures:", len(s.Failures))))
		for _, f := range s.Failures {
			line := fmt.Sprintf("    [%s] %s", f.Status, f.URL)
			if f.Reason != "" {
				line += " (" + clip(f.Reason, 120) + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
	for _, p := range s.Problems {
		fmt.Fprintln(w, ui.Dim("  skipped: "+p))
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
