// Package manifest records the image candidates a run discovered.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cpcscraper/pkg/models"

	"github.com/google/uuid"
)

// FileName is the manifest's name inside the output directory.
const FileName = "candidates.json"

// Entry is one candidate with the page it was found on.
type Entry struct {
	Source string                `json:"source"`
	Image  models.ImageCandidate `json:"image"`
}

// Manifest lists every candidate of a run in discovery order.
type Manifest struct {
	RunID      string    `json:"run_id"`
	StartURL   string    `json:"start_url"`
	CreatedAt  time.Time `json:"created_at"`
	Candidates []Entry   `json:"candidates"`
}

// New starts an empty manifest with a fresh run ID.
func New(startURL string) *Manifest {
	return &Manifest{
		RunID:      uuid.NewString(),
		StartURL:   startURL,
		CreatedAt:  time.Now(),
		Candidates: []Entry{},
	}
}

// Add appends candidates found on source.
func (m *Manifest) Add(source string, images ...models.ImageCandidate) {
	for _, img := range images {
		m.Candidates = append(m.Candidates, Entry{Source: source, Image: img})
	}
}

// Append adds entries found elsewhere.
func (m *Manifest) Append(entries ...Entry) {
	m.Candidates = append(m.Candidates, entries...)
}

// Len is the number of recorded candidates.
func (m *Manifest) Len() int {
	return len(m.Candidates)
}

// Save writes the manifest as indented JSON to dir/candidates.json and
// returns the path.
func (m *Manifest) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest file: %w", err)
	}
	return path, nil
}

// Load reads a manifest previously written by Save.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
