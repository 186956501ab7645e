package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"cpcscraper/pkg/models"
)

// ProgressDisplay is a single-line console progress bar.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	total     int
	done      int
	counts    map[models.Status]int
	current   string
	startTime time.Time
	verbose   bool
}

// NewProgressDisplay creates a display writing to stderr. In verbose mode
// every finished download gets its own line instead of the redrawn bar.
func NewProgressDisplay(verbose bool) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stderr, verbose)
}

// NewProgressDisplayTo is NewProgressDisplay with an explicit writer.
func NewProgressDisplayTo(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		counts:    make(map[models.Status]int),
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// Stage prints a discovery notice on its own line.
func (p *ProgressDisplay) Stage(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s\r%s %s\n", strings.Repeat(" ", 100), Magenta("→"), fmt.Sprintf(format, args...))
}

// SetTotal updates the number of scheduled downloads.
func (p *ProgressDisplay) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Start marks the start of a new download
func (p *ProgressDisplay) Start(id, product, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = filename
	if !p.verbose {
		p.printProgress()
	}
}

// Finish records one terminal outcome.
func (p *ProgressDisplay) Finish(id string, outcome models.DownloadOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.counts[outcome.Status]++

	if !p.verbose {
		p.printProgress()
		return
	}
	switch {
	case outcome.Status == models.StatusOK:
		fmt.Fprintf(p.out, "%s %s\n", Green("✓"), outcome.Path)
	case outcome.Status == models.StatusExists:
		fmt.Fprintf(p.out, "%s %s\n", Dim("="), outcome.Path)
	default:
		fmt.Fprintf(p.out, "%s %s %s: %v\n", Red("✗"), outcome.Status, outcome.SourceURL, outcome.Err)
	}
}

// printProgress redraws the bar. Callers hold p.mu.
func (p *ProgressDisplay) printProgress() {
	total := p.total
	if total < p.done {
		total = p.done
	}

	const barWidth = 20
	filled := 0
	if total > 0 {
		filled = p.done * barWidth / total
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("[%s] %d/%d • %s", bar, p.done, total, p.calculateETA(total))
	if n := p.counts[models.StatusExists]; n > 0 {
		line += " • " + Dim(fmt.Sprintf("%d existing", n))
	}
	if n := p.failures(); n > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", n))
	}
	if p.current != "" {
		line += " • " + Cyan(p.current)
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

func (p *ProgressDisplay) failures() int {
	n := 0
	for status, c := range p.counts {
		if status.Failed() {
			n += c
		}
	}
	return n
}

// Close ends the progress line.
func (p *ProgressDisplay) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.verbose && p.done > 0 {
		fmt.Fprintf(p.out, "\n%s %d downloads in %s\n", Dim("•"), p.done, formatDuration(time.Since(p.startTime)))
	}
}

// Counts returns a copy of the per-status tallies.
func (p *ProgressDisplay) Counts() map[models.Status]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[models.Status]int, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA(total int) string {
	if p.done == 0 {
		return "calculating..."
	}
	elapsed := time.Since(p.startTime)
	perItem := elapsed / time.Duration(p.done)
	return formatDuration(perItem * time.Duration(total-p.done))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
