package extract

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SnippetLimit caps provenance snippets, in characters.
const SnippetLimit = 200

// Document is a parsed page plus the URL its relative links resolve against.
// The same node tree backs both CSS and XPath queries.
type Document struct {
	Root  *html.Node
	Base  *url.URL
	query *goquery.Document
}

// Parse reads HTML from r. baseURL must be absolute.
func Parse(r io.Reader, baseURL string) (*Document, error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", baseURL, err)
	}
	doc := &Document{
		Root:  root,
		Base:  base,
		query: goquery.NewDocumentFromNode(root),
	}
	// Honour <base href> the way browsers do.
	if href, ok := doc.query.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil && b.IsAbs() {
			doc.Base = b
		}
	}
	return doc, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(s, baseURL string) (*Document, error) {
	return Parse(strings.NewReader(s), baseURL)
}

// Find runs a CSS selector over the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.query.Find(selector)
}

// Snippet renders n as HTML truncated to SnippetLimit characters.
func Snippet(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return truncate(buf.String(), SnippetLimit)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// attr returns the trimmed value of the named attribute.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// text returns the visible text of n with whitespace collapsed.
func text(n *html.Node) string {
	return strings.Join(strings.Fields(goquery.NewDocumentFromNode(n).Text()), " ")
}

// elements walks the tree in document order.
func elements(root *html.Node, visit func(*html.Node)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			visit(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}
