package extract

import (
	"strings"

	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/urlset"

	"github.com/PuerkitoBio/goquery"
)

// DefaultDetailMarker identifies product detail links on the catalog site.
const DefaultDetailMarker = "C_Products_Detail"

// anchor is a resolved <a href> with its visible text.
type anchor struct {
	URL   string
	Text  string
	Title string
}

func (d *Document) anchors() []anchor {
	var out []anchor
	d.query.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := urlset.Resolve(d.Base, href)
		if !ok {
			return
		}
		title, _ := s.Attr("title")
		out = append(out, anchor{
			URL:   abs,
			Text:  strings.Join(strings.Fields(s.Text()), " "),
			Title: strings.TrimSpace(title),
		})
	})
	return out
}

// FindCategoryLinks binds each wanted name to the first anchor whose visible
// text contains it. When some names stay unbound the partial mapping is
// returned together with a *errors.CategoryNotFoundError naming them.
func FindCategoryLinks(doc *Document, wanted []string) (map[string]string, error) {
	found := make(map[string]string, len(wanted))
	for _, a := range doc.anchors() {
		if a.Text == "" {
			continue
		}
		for _, name := range wanted {
			if _, bound := found[name]; bound || name == "" {
				continue
			}
			if strings.Contains(a.Text, name) {
				found[name] = a.URL
			}
		}
		if len(found) == len(wanted) {
			break
		}
	}

	var missing []string
	for _, name := range urlset.Strings(wanted) {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return found, &errs.CategoryNotFoundError{Missing: missing}
	}
	return found, nil
}

// ProductSet is an insertion-ordered map of product name to detail URL.
// Re-adding a name replaces its URL but keeps its original position.
type ProductSet struct {
	order  []string
	byName map[string]string
}

// NewProductSet creates an empty set.
func NewProductSet() *ProductSet {
	return &ProductSet{byName: make(map[string]string)}
}

// Add records name -> url, last write wins.
func (p *ProductSet) Add(name, url string) {
	if _, ok := p.byName[name]; !ok {
		p.order = append(p.order, name)
	}
	p.byName[name] = url
}

// Len is the number of distinct product names.
func (p *ProductSet) Len() int { return len(p.order) }

// Get returns the detail URL recorded for name.
func (p *ProductSet) Get(name string) (string, bool) {
	u, ok := p.byName[name]
	return u, ok
}

// Products lists the set in first-seen order.
func (p *ProductSet) Products() []models.ProductRef {
	out := make([]models.ProductRef, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, models.ProductRef{Name: name, DetailURL: p.byName[name]})
	}
	return out
}

// FindProductLinks collects anchors whose href contains marker. The product
// name is the anchor text, falling back to its title attribute; anchors with
// neither are skipped. An empty result is a *errors.NoProductsFoundError.
func FindProductLinks(doc *Document, marker string) (*ProductSet, error) {
	if marker == "" {
		marker = DefaultDetailMarker
	}
	set := NewProductSet()
	for _, a := range doc.anchors() {
		if !strings.Contains(a.URL, marker) {
			continue
		}
		name := a.Text
		if name == "" {
			name = a.Title
		}
		if name == "" {
			continue
		}
		set.Add(name, a.URL)
	}
	if set.Len() == 0 {
		return nil, &errs.NoProductsFoundError{URL: doc.Base.String()}
	}
	return set, nil
}

// FindSameOriginLinks lists every anchor target on the document's origin,
// deduplicated in document order.
func FindSameOriginLinks(doc *Document) []string {
	all := doc.anchors()
	urls := make([]string, 0, len(all))
	for _, a := range all {
		urls = append(urls, a.URL)
	}
	return urlset.Strings(urlset.SameOrigin(urls, doc.Base.String()))
}
