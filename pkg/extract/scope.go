package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Scope narrows image discovery to the nodes matching a structural query.
type Scope interface {
	// Select returns the matching element nodes in document order.
	Select(doc *Document) []*html.Node
	String() string
}

// CSSScope is a compiled CSS selector.
type CSSScope struct {
	expr string
	sel  cascadia.Selector
}

// NewCSSScope compiles selector, failing on invalid syntax.
func NewCSSScope(selector string) (*CSSScope, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", selector, err)
	}
	return &CSSScope{expr: selector, sel: sel}, nil
}

func (s *CSSScope) Select(doc *Document) []*html.Node {
	return inDocumentOrder(doc.Root, doc.query.FindMatcher(s.sel).Nodes)
}

func (s *CSSScope) String() string { return "css:" + s.expr }

// XPathScope is a compiled XPath expression.
type XPathScope struct {
	expr string
	xp   *xpath.Expr
}

// NewXPathScope compiles expr, failing on invalid syntax.
func NewXPathScope(expr string) (*XPathScope, error) {
	xp, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return &XPathScope{expr: expr, xp: xp}, nil
}

func (s *XPathScope) Select(doc *Document) []*html.Node {
	var els []*html.Node
	for _, n := range htmlquery.QuerySelectorAll(doc.Root, s.xp) {
		if n.Type == html.ElementNode {
			els = append(els, n)
		}
	}
	return inDocumentOrder(doc.Root, els)
}

func (s *XPathScope) String() string { return "xpath:" + s.expr }

// ParseScope picks XPath for expressions that look like paths ("/", "./",
// "(") and CSS otherwise. An empty expression means no scope.
func ParseScope(expr string) (Scope, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return nil, nil
	case strings.HasPrefix(expr, "/"), strings.HasPrefix(expr, "./"), strings.HasPrefix(expr, "("):
		return NewXPathScope(expr)
	default:
		return NewCSSScope(expr)
	}
}

// inDocumentOrder sorts nodes by their position in a pre-order walk and
// drops duplicates.
func inDocumentOrder(root *html.Node, nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	pos := make(map[*html.Node]int)
	i := 0
	elements(root, func(n *html.Node) {
		pos[n] = i
		i++
	})
	seen := make(map[*html.Node]bool, len(nodes))
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := pos[n]; ok && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return pos[out[a]] < pos[out[b]] })
	return out
}
