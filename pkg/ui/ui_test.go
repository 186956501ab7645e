package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"cpcscraper/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestProgressDisplayCounts(t *testing.T) {
	var buf bytes.Buffer
	SetColor(false)
	defer SetColor(true)

	p := NewProgressDisplayTo(&buf, false)
	p.SetTotal(3)
	p.Stage("Category %s: %d products", "滑脂", 2)

	p.Start("1", "A", "a.jpg")
	p.Finish("1", models.DownloadOutcome{Status: models.StatusOK, Path: "a.jpg"})
	p.Start("2", "A", "b.jpg")
	p.Finish("2", models.DownloadOutcome{Status: models.StatusExists, Path: "b.jpg"})
	p.Start("3", "B", "c.jpg")
	p.Finish("3", models.DownloadOutcome{Status: models.StatusFailed, Err: errors.New("boom")})
	p.Close()

	out := buf.String()
	assert.Contains(t, out, "→ Category 滑脂: 2 products")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "1 existing")
	assert.Contains(t, out, "1 failed")
	assert.Equal(t, map[models.Status]int{
		models.StatusOK:     1,
		models.StatusExists: 1,
		models.StatusFailed: 1,
	}, p.Counts())
}

func TestProgressDisplayVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetColor(false)
	defer SetColor(true)

	p := NewProgressDisplayTo(&buf, true)
	p.Finish("1", models.DownloadOutcome{Status: models.StatusOK, Path: "out/a.jpg"})
	p.Finish("2", models.DownloadOutcome{Status: models.StatusNotImage, SourceURL: "https://x.org/v", Err: errors.New("text/html")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"✓ out/a.jpg", "✗ not-image https://x.org/v: text/html"}, lines)
}

func TestProgressDisplayConcurrent(t *testing.T) {
	p := NewProgressDisplayTo(&bytes.Buffer{}, false)
	p.SetTotal(50)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Start("id", "p", "f.jpg")
			p.Finish("id", models.DownloadOutcome{Status: models.StatusOK})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, p.Counts()[models.StatusOK])
}

func TestNopProgress(t *testing.T) {
	var p Progress = NopProgress{}
	p.Stage("x")
	p.SetTotal(1)
	p.Start("a", "b", "c")
	p.Finish("a", models.DownloadOutcome{})
	p.Close()
}

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title+"|"+message)
	return r.err
}

func TestNotifier(t *testing.T) {
	rec := &recordingSender{err: errors.New("no display")}
	n := NewNotifierWith(rec)
	n.Notify("cpcscraper", "12 images")
	assert.Equal(t, []string{"cpcscraper|12 images"}, rec.titles)

	var nilNotifier *Notifier
	nilNotifier.Notify("ignored", "ignored")
	NewNotifierWith(nil).Notify("ignored", "ignored")
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	old := Out
	Out = &buf
	defer func() { Out = old }()
	SetColor(false)
	defer SetColor(true)

	PrintInfo("Output", "downloads")
	PrintError("Failed", errors.New("boom"))
	PrintWarning("careful")

	assert.Equal(t, "Output: downloads\nFailed: boom\ncareful\n", buf.String())
}
