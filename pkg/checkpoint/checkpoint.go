package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cpcscraper/pkg/config"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/naming"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
)

// Version is the on-disk format version.
const Version = 1

// ProductRecord is the stored result of one finished product.
type ProductRecord struct {
	Images      int       `json:"images"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

// Checkpoint represents the state of a harvest run
type Checkpoint struct {
	RunID             string                   `json:"run_id"`
	RunKey            string                   `json:"run_key"`
	OutputDir         string                   `json:"output_dir"`
	Categories        []string                 `json:"categories,omitempty"`
	CompletedProducts map[string]ProductRecord `json:"completed_products"`
	TotalDownloaded   int                      `json:"total_downloaded"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	Version           int                      `json:"version"`
}

// IsProductComplete reports whether key was recorded as finished.
func (c *Checkpoint) IsProductComplete(key string) bool {
	_, ok := c.CompletedProducts[key]
	return ok
}

// ProductKey identifies a product within a run.
func ProductKey(category, product string) string {
	return category + "/" + product
}

// RunKey derives a stable file key from what defines a run: its mode,
// output directory and sorted inputs.
func RunKey(mode, outputDir string, inputs []string) string {
	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		abs = outputDir
	}
	return mode + "-" + naming.ShortHash(abs+"\x00"+strings.Join(sorted, "\x00"))
}

// Manager handles checkpoint operations. Its methods are safe for
// concurrent use.
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager stores the checkpoint for runKey under the XDG data directory.
func NewManager(runKey string) (*Manager, error) {
	path, err := xdg.DataFile(filepath.Join(config.AppName, "checkpoints", runKey+".checkpoint.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint path: %w", err)
	}
	return &Manager{checkpointPath: path, logger: logger.GetLogger()}, nil
}

// NewManagerAt stores the checkpoint for runKey in dir.
func NewManagerAt(dir, runKey string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &Manager{
		checkpointPath: filepath.Join(dir, runKey+".checkpoint.json"),
		logger:         logger.GetLogger(),
	}, nil
}

// Path is the checkpoint file location.
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(runKey, outputDir string, categories []string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		RunID:             uuid.NewString(),
		RunKey:            runKey,
		OutputDir:         outputDir,
		Categories:        categories,
		CompletedProducts: make(map[string]ProductRecord),
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           Version,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_key": runKey,
		"path":    m.checkpointPath,
	})
	return cp, nil
}

// Load loads an existing checkpoint. A missing file yields nil, nil.
func (m *Manager) Load() (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	if cp.CompletedProducts == nil {
		cp.CompletedProducts = make(map[string]ProductRecord)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_key":            cp.RunKey,
		"completed_products": len(cp.CompletedProducts),
		"total_downloaded":   cp.TotalDownloaded,
		"updated_at":         cp.UpdatedAt,
	})
	return &cp, nil
}

// LoadOrCreate resumes the stored checkpoint when resume is set and one
// exists, and otherwise starts fresh, discarding any stored state.
func (m *Manager) LoadOrCreate(resume bool, runKey, outputDir string, categories []string) (*Checkpoint, bool, error) {
	if resume {
		cp, err := m.Load()
		if err != nil {
			m.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		} else if cp != nil {
			return cp, true, nil
		}
	}
	if err := m.Delete(); err != nil {
		return nil, false, err
	}
	cp, err := m.Create(runKey, outputDir, categories)
	return cp, false, err
}

// Save writes the checkpoint atomically.
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(cp)
}

func (m *Manager) save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"completed_products": len(cp.CompletedProducts),
		"total_downloaded":   cp.TotalDownloaded,
	})
	return nil
}

// RecordProduct marks a product finished and saves.
func (m *Manager) RecordProduct(cp *Checkpoint, key string, rec ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	cp.CompletedProducts[key] = rec
	cp.TotalDownloaded += rec.Images
	return m.save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}
