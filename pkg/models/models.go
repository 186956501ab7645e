package models

import "time"

// CategoryRef is a resolved top-level product category.
type CategoryRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProductRef points at one product detail page.
type ProductRef struct {
	Name      string `json:"name"`
	DetailURL string `json:"detail_url"`
}

// ImageCandidate is one discovered image. Node is a short markup snippet
// recording where the URL came from.
type ImageCandidate struct {
	URL      string `json:"url"`
	Alt      string `json:"alt"`
	Node     string `json:"node"`
	Strategy string `json:"strategy,omitempty"`
}

// Status is the terminal state of one download.
type Status string

const (
	StatusOK       Status = "ok"
	StatusExists   Status = "exists"
	StatusNotImage Status = "not-image"
	StatusFailed   Status = "failed"
	StatusError    Status = "error"
)

// Statuses lists every status in summary order.
var Statuses = []Status{StatusOK, StatusExists, StatusNotImage, StatusFailed, StatusError}

// Failed reports whether the status counts as a failure in summaries.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusError || s == StatusNotImage
}

// DownloadOutcome is the result of downloading one image. Path is empty
// when nothing was written or found.
type DownloadOutcome struct {
	SourceURL string `json:"source_url"`
	Path      string `json:"path,omitempty"`
	Status    Status `json:"status"`
	Err       error  `json:"-"`
}

// DownloadResult aggregates the outcomes for one product.
type DownloadResult struct {
	Category string            `json:"category,omitempty"`
	Product  string            `json:"product"`
	Images   []string          `json:"images"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Outcomes []DownloadOutcome `json:"-"`
}

// MaxListedFailures caps the failures a summary lists.
const MaxListedFailures = 10

// Failure is one failing download kept for the summary.
type Failure struct {
	Product string `json:"product,omitempty"`
	URL     string `json:"url"`
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Summary is the end-of-run tally.
type Summary struct {
	Mode       string           `json:"mode"`
	StartURL   string           `json:"start_url,omitempty"`
	OutputDir  string           `json:"output_dir"`
	Categories []string         `json:"categories,omitempty"`
	Started    time.Time        `json:"started"`
	Finished   time.Time        `json:"finished"`
	Candidates int              `json:"candidates"`
	Counts     map[Status]int   `json:"counts"`
	Failures   []Failure        `json:"failures,omitempty"`
	Products   []DownloadResult `json:"products,omitempty"`
	Resumed    int              `json:"resumed,omitempty"`
	Problems   []string         `json:"problems,omitempty"`
}

// NewSummary starts an empty tally.
func NewSummary(mode, outputDir string) *Summary {
	return &Summary{
		Mode:      mode,
		OutputDir: outputDir,
		Started:   time.Now(),
		Counts:    make(map[Status]int),
	}
}

// Record folds one outcome into the counts and keeps the first
// MaxListedFailures failures.
func (s *Summary) Record(product string, o DownloadOutcome) {
	s.Counts[o.Status]++
	if !o.Status.Failed() || len(s.Failures) >= MaxListedFailures {
		return
	}
	f := Failure{Product: product, URL: o.SourceURL, Status: o.Status}
	if o.Err != nil {
		f.Reason = o.Err.Error()
	}
	s.Failures = append(s.Failures, f)
}

// Total is the number of recorded outcomes.
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// FailedCount sums the failing statuses.
func (s *Summary) FailedCount() int {
	n := 0
	for status, c := range s.Counts {
		if status.Failed() {
			n += c
		}
	}
	return n
}

// Duration is the wall time of the run, or zero before it finished.
func (s *Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}
