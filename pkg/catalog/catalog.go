// Package catalog maps category names and their synonyms to catalog URLs.
package catalog

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"cpcscraper/pkg/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultTable []byte

// Resolver maps a user-supplied category name to a catalog category.
type Resolver interface {
	Resolve(name string) (models.CategoryRef, bool)
}

// Entry is one category row. URL wins over CSN when both are set.
type Entry struct {
	Name     string   `yaml:"name"`
	CSN      string   `yaml:"csn,omitempty"`
	URL      string   `yaml:"url,omitempty"`
	Synonyms []string `yaml:"synonyms,omitempty"`
}

type tableFile struct {
	BaseURL    string  `yaml:"base_url"`
	Categories []Entry `yaml:"categories"`
}

// Table is an immutable classification table. It is safe for concurrent use.
type Table struct {
	entries []models.CategoryRef
	index   map[string]int
}

var fold = cases.Fold()

// Normalize trims, applies NFKC and case-folds name so full-width and
// mixed-case spellings compare equal.
func Normalize(name string) string {
	s := norm.NFKC.String(strings.TrimSpace(name))
	return strings.Join(strings.Fields(fold.String(s)), " ")
}

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in table: %v", err))
	}
	return t
}

// LoadFile reads a table from a YAML file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load returns the table at path, or the built-in one when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Parse decodes a YAML table. A name or synonym may map to only one category.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}

	t := &Table{index: make(map[string]int)}
	for _, e := range f.Categories {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("category with empty name")
		}
		link, err := entryURL(f.BaseURL, e)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}

		idx := len(t.entries)
		t.entries = append(t.entries, models.CategoryRef{Name: name, URL: link})
		for _, key := range append([]string{name}, e.Synonyms...) {
			k := Normalize(key)
			if k == "" {
				continue
			}
			if prev, ok := t.index[k]; ok && prev != idx {
				return nil, fmt.Errorf("%q maps to both %s and %s", key, t.entries[prev].Name, name)
			}
			t.index[k] = idx
		}
	}
	return t, nil
}

func entryURL(base string, e Entry) (string, error) {
	raw := strings.TrimSpace(e.URL)
	if raw == "" {
		if e.CSN == "" || base == "" {
			return "", fmt.Errorf("needs url or csn with base_url")
		}
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		// Appended, not re-encoded: the site keys pages on its own parameter order.
		raw = strings.TrimRight(base, "?&") + sep + "_CSN=" + url.QueryEscape(e.CSN)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}
	return raw, nil
}

// Resolve looks name up by canonical name or synonym.
func (t *Table) Resolve(name string) (models.CategoryRef, bool) {
	idx, ok := t.index[Normalize(name)]
	if !ok {
		return models.CategoryRef{}, false
	}
	return t.entries[idx], true
}

// Canonical returns the canonical name for name, or name trimmed when the
// table does not know it.
func (t *Table) Canonical(name string) string {
	if ref, ok := t.Resolve(name); ok {
		return ref.Name
	}
	return strings.TrimSpace(name)
}

// Categories lists the table in file order.
func (t *Table) Categories() []models.CategoryRef {
	out := make([]models.CategoryRef, len(t.entries))
	copy(out, t.entries)
	return out
}
