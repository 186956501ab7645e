package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cpcscraper/pkg/fetcher"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/naming"
)

// Source fetches image bytes. *fetcher.Fetcher satisfies it.
type Source interface {
	FetchBinary(ctx context.Context, url string) (*fetcher.Payload, error)
}

// ErrNotImage reports a payload whose content type rules it out as an image.
var ErrNotImage = errors.New("response is not an image")

// Manager downloads images to disk and remembers which destinations it
// has claimed, so concurrent workers never write the same path twice.
type Manager struct {
	source Source
	logger logger.Logger

	mu      sync.RWMutex
	claimed map[string]bool
	written int
}

// NewManager creates a Manager that fetches through source.
func NewManager(source Source, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		source:  source,
		logger:  log.WithField("component", "storage"),
		claimed: make(map[string]bool),
	}
}

// DownloadOne saves rawURL into dir under its URL-derived filename.
func (m *Manager) DownloadOne(ctx context.Context, rawURL, dir string) models.DownloadOutcome {
	return m.DownloadAs(ctx, rawURL, dir, naming.FilenameForURL(rawURL))
}

// DownloadAs saves rawURL as dir/filename. An existing destination is
// reported as exists without touching the network.
func (m *Manager) DownloadAs(ctx context.Context, rawURL, dir, filename string) models.DownloadOutcome {
	dest := filepath.Join(dir, filename)
	out := models.DownloadOutcome{SourceURL: rawURL}

	if !m.claim(dest) {
		out.Path = dest
		out.Status = models.StatusExists
		return out
	}

	payload, err := m.source.FetchBinary(ctx, rawURL)
	if err != nil {
		m.release(dest)
		out.Status = models.StatusFailed
		out.Err = err
		return out
	}

	if !looksLikeImage(payload.ContentType, rawURL) {
		m.release(dest)
		out.Status = models.StatusNotImage
		out.Err = fmt.Errorf("%w: %s", ErrNotImage, payload.ContentType)
		return out
	}

	if err := m.save(payload.Body, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			out.Path = dest
			out.Status = models.StatusExists
			return out
		}
		m.release(dest)
		out.Status = models.StatusError
		out.Err = err
		return out
	}

	m.mu.Lock()
	m.written++
	m.mu.Unlock()

	out.Path = dest
	out.Status = models.StatusOK
	return out
}

// claim reserves dest for this run. It fails when dest is already claimed
// or already on disk.
func (m *Manager) claim(dest string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[dest] {
		return false
	}
	m.claimed[dest] = true
	if _, err := os.Lstat(dest); err == nil {
		return false
	}
	return true
}

func (m *Manager) release(dest string) {
	m.mu.Lock()
	delete(m.claimed, dest)
	m.mu.Unlock()
}

// Exists reports whether path is already on disk.
func (m *Manager) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Written returns the number of files written by this Manager.
func (m *Manager) Written() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.written
}

// save writes body to a fresh temp file in dest's directory and renames it
// into place. An existing dest is left untouched.
func (m *Manager) save(body []byte, dest string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(body)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if _, err := os.Lstat(dest); err == nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", dest, fs.ErrExist)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// looksLikeImage accepts image/* responses, responses without a content
// type, and anything served from a URL with an image extension.
func looksLikeImage(contentType, rawURL string) bool {
	if strings.TrimSpace(contentType) == "" || naming.HasImageExtension(rawURL) {
		return true
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		media = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return strings.HasPrefix(media, "image/")
}
