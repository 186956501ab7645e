package extract

import (
	"path"
	"strings"

	"cpcscraper/pkg/models"
	"cpcscraper/pkg/urlset"

	"golang.org/x/net/html"
)

// ImageExtractor runs an ordered strategy list over a document.
type ImageExtractor struct {
	Strategies []Strategy
	// Fallback runs over every element only when Strategies found nothing.
	Fallback *Strategy
}

// NewImageExtractor returns the img / style / data-attr extractor with the
// anchor fallback.
func NewImageExtractor() *ImageExtractor {
	fb := AnchorFallback
	return &ImageExtractor{Strategies: DefaultStrategies, Fallback: &fb}
}

// ExtractImages is NewImageExtractor().Extract.
func ExtractImages(doc *Document, scope Scope) []models.ImageCandidate {
	return NewImageExtractor().Extract(doc, scope)
}

// Extract returns the document's image candidates, deduplicated by URL in
// first-seen order. With a nil scope every element is a candidate node.
func (e *ImageExtractor) Extract(doc *Document, scope Scope) []models.ImageCandidate {
	scoped := scope != nil
	var nodes []*html.Node
	if scoped {
		nodes = scope.Select(doc)
	} else {
		elements(doc.Root, func(n *html.Node) { nodes = append(nodes, n) })
	}

	var out []models.ImageCandidate
	for _, n := range nodes {
		for _, s := range e.Strategies {
			hits := s.Extract(n, doc.Base, scoped)
			if len(hits) == 0 {
				continue
			}
			out = append(out, toCandidates(hits, n, s.Name, scoped)...)
			break
		}
	}

	if len(out) == 0 && e.Fallback != nil {
		elements(doc.Root, func(n *html.Node) {
			hits := e.Fallback.Extract(n, doc.Base, false)
			out = append(out, toCandidates(hits, n, e.Fallback.Name, false)...)
		})
	}

	return urlset.Dedupe(out, func(c models.ImageCandidate) string { return c.URL })
}

// toCandidates records the scoped node as provenance when scoped, and the
// matched element otherwise.
func toCandidates(hits []found, node *html.Node, strategy string, scoped bool) []models.ImageCandidate {
	out := make([]models.ImageCandidate, 0, len(hits))
	for _, h := range hits {
		src := h.Node
		if scoped || src == nil {
			src = node
		}
		out = append(out, models.ImageCandidate{
			URL:      h.URL,
			Alt:      h.Alt,
			Node:     Snippet(src),
			Strategy: strategy,
		})
	}
	return out
}

// Predicate decides whether a candidate is worth downloading.
type Predicate func(models.ImageCandidate) bool

// AcceptAll keeps every candidate.
func AcceptAll(models.ImageCandidate) bool { return true }

// NewPredicate keeps candidates whose lowercased URL contains at least one
// of pathHints (any URL when pathHints is empty) and whose path does not
// end in one of excludeExts.
func NewPredicate(pathHints, excludeExts []string) Predicate {
	if len(pathHints) == 0 && len(excludeExts) == 0 {
		return AcceptAll
	}
	hints := lowerAll(pathHints)
	excluded := lowerAll(excludeExts)
	return func(c models.ImageCandidate) bool {
		lower := strings.ToLower(c.URL)
		ext := strings.ToLower(path.Ext(urlset.PathOf(c.URL)))
		for _, x := range excluded {
			if ext == x {
				return false
			}
		}
		if len(hints) == 0 {
			return true
		}
		for _, h := range hints {
			if strings.Contains(lower, h) {
				return true
			}
		}
		return false
	}
}

// Filter keeps the candidates accepted by keep, preserving order.
func Filter(cands []models.ImageCandidate, keep Predicate) []models.ImageCandidate {
	if keep == nil {
		return cands
	}
	out := make([]models.ImageCandidate, 0, len(cands))
	for _, c := range cands {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func lowerAll(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x = strings.ToLower(strings.TrimSpace(x)); x != "" {
			out = append(out, x)
		}
	}
	return out
}
