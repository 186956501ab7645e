// Package downloader runs image downloads on a bounded set of goroutines.
package downloader

import (
	"context"
	"path/filepath"
	"time"

	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/naming"
	"cpcscraper/pkg/ratelimit"
	"cpcscraper/pkg/ui"

	"golang.org/x/sync/errgroup"
)

// pausePoll is how often a paused pool rechecks the display.
const pausePoll = 200 * time.Millisecond

// Job is one image to fetch into Dir. An empty Filename means the
// URL-derived name.
type Job struct {
	Category string
	Product  string
	URL      string
	Dir      string
	Filename string
}

// Path is the destination the job writes to.
func (j Job) Path() string {
	name := j.Filename
	if name == "" {
		name = naming.FilenameForURL(j.URL)
	}
	return filepath.Join(j.Dir, name)
}

// Result pairs a job with its outcome.
type Result struct {
	Job      Job
	Outcome  models.DownloadOutcome
	Duration time.Duration
}

// Downloader saves one URL. *storage.Manager satisfies it.
type Downloader interface {
	DownloadAs(ctx context.Context, url, dir, filename string) models.DownloadOutcome
	Exists(path string) bool
}

// WorkerPool downloads jobs with at most numWorkers in flight.
type WorkerPool struct {
	numWorkers  int
	downloader  Downloader
	rateLimiter ratelimit.Limiter
	progress    ui.Progress
	logger      logger.Logger
	onResult    func(Result)
}

// NewWorkerPool creates a pool. A nil limiter means unlimited and a nil
// progress means no display.
func NewWorkerPool(
	numWorkers int,
	downloader Downloader,
	rateLimiter ratelimit.Limiter,
	progress ui.Progress,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if progress == nil {
		progress = ui.NopProgress{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &WorkerPool{
		numWorkers:  numWorkers,
		downloader:  downloader,
		rateLimiter: rateLimiter,
		progress:    progress,
		logger:      log.WithField("component", "downloader"),
	}
}

// OnResult registers fn to be called from the worker goroutine after each
// finished job. fn must be safe for concurrent use.
func (wp *WorkerPool) OnResult(fn func(Result)) {
	wp.onResult = fn
}

// Run downloads every job and returns the results in job order. Jobs not
// started before ctx is cancelled are left out, and Run then returns
// ctx.Err(). Individual download failures are outcomes, not errors.
func (wp *WorkerPool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	logger.LogComponentStart(wp.logger, "worker_pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"jobs":        len(jobs),
	})

	results := make([]Result, len(jobs))
	started := make([]bool, len(jobs))

	var g errgroup.Group
	g.SetLimit(wp.numWorkers)

	for i, job := range jobs {
		i, job := i, job
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !wp.waitWhilePaused(ctx) {
				return nil
			}
			results[i] = wp.process(ctx, job, i)
			started[i] = true
			if wp.onResult != nil {
				wp.onResult(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Result, 0, len(jobs))
	for i, ok := range started {
		if ok {
			out = append(out, results[i])
		}
	}

	reason := "completed"
	if ctx.Err() != nil {
		reason = "cancelled"
	}
	logger.LogComponentStop(wp.logger, "worker_pool", reason)
	return out, ctx.Err()
}

// process handles a single download job
func (wp *WorkerPool) process(ctx context.Context, job Job, index int) Result {
	start := time.Now()
	id := job.Path()
	filename := filepath.Base(id)
	wp.progress.Start(id, job.Product, filename)

	// Existing files skip the rate limiter; they cost no request.
	if !wp.downloader.Exists(id) {
		if err := wp.rateLimiter.Wait(ctx); err != nil {
			outcome := models.DownloadOutcome{SourceURL: job.URL, Status: models.StatusError, Err: err}
			wp.progress.Finish(id, outcome)
			return Result{Job: job, Outcome: outcome, Duration: time.Since(start)}
		}
	}

	outcome := wp.downloader.DownloadAs(ctx, job.URL, job.Dir, filename)
	result := Result{Job: job, Outcome: outcome, Duration: time.Since(start)}

	logger.LogDownload(wp.logger.WithField("job", index), job.Product, job.URL, string(outcome.Status), outcome.Path, outcome.Err)
	wp.progress.Finish(id, outcome)
	return result
}

// waitWhilePaused blocks while the display reports a pause. It returns
// false if ctx ends first.
func (wp *WorkerPool) waitWhilePaused(ctx context.Context) bool {
	p, ok := wp.progress.(ui.Pauser)
	if !ok {
		return ctx.Err() == nil
	}
	for p.Paused() {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pausePoll):
		}
	}
	return ctx.Err() == nil
}
