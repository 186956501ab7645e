package scraper

import (
	"sync"

	"cpcscraper/internal/downloader"
	"cpcscraper/pkg/checkpoint"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/models"
)

// productTracker records a product in the checkpoint once its last
// download finishes without failures, so --resume retries failed products.
type productTracker struct {
	mgr    *checkpoint.Manager
	cp     *checkpoint.Checkpoint
	logger logger.Logger

	mu        sync.Mutex
	remaining map[string]int
	records   map[string]*checkpoint.ProductRecord
}

func newProductTracker(jobs []downloader.Job, mgr *checkpoint.Manager, cp *checkpoint.Checkpoint, log logger.Logger) *productTracker {
	t := &productTracker{
		mgr:       mgr,
		cp:        cp,
		logger:    log,
		remaining: make(map[string]int),
		records:   make(map[string]*checkpoint.ProductRecord),
	}
	for _, j := range jobs {
		key := checkpoint.ProductKey(j.Category, j.Product)
		t.remaining[key]++
		if _, ok := t.records[key]; !ok {
			t.records[key] = &checkpoint.ProductRecord{}
		}
	}
	return t
}

// observe is the worker pool's result hook.
func (t *productTracker) observe(r downloader.Result) {
	if t.mgr == nil {
		return
	}
	key := checkpoint.ProductKey(r.Job.Category, r.Job.Product)

	t.mu.Lock()
	rec, ok := t.records[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	switch {
	case r.Outcome.Status == models.StatusOK:
		rec.Images++
	case r.Outcome.Status == models.StatusExists:
		rec.Skipped++
	default:
		rec.Failed++
	}
	t.remaining[key]--
	done := t.remaining[key] == 0
	final := *rec
	t.mu.Unlock()

	if !done || final.Failed > 0 {
		return
	}
	if err := t.mgr.RecordProduct(t.cp, key, final); err != nil {
		t.logger.WithError(err).WithField("product", r.Job.Product).Warn("Failed to update checkpoint")
	}
}
