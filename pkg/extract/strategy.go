package extract

import (
	"net/url"
	"regexp"
	"strings"

	"cpcscraper/pkg/naming"
	"cpcscraper/pkg/urlset"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// found is one raw hit from a strategy, already resolved to absolute form.
type found struct {
	URL  string
	Alt  string
	Node *html.Node
}

// Strategy extracts image URLs from one node. Scoped reports whether node
// came from a structural query rather than a full-document walk.
type Strategy struct {
	Name    string
	Extract func(node *html.Node, base *url.URL, scoped bool) []found
}

// imgSourceAttrs is the lookup order for an <img> element's URL.
var imgSourceAttrs = []string{"src", "data-src", "data-original"}

// DataHintAttrs are the generic data attributes that often carry an image.
var DataHintAttrs = []string{"data-src", "data-original", "data-image", "data-bg"}

var (
	styleURL   = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^)'"]*))\s*\)`)
	styleLoose = regexp.MustCompile(`(?i)url\s*[:=]\s*(?:"([^"]*)"|'([^']*)'|([^\s;'"]+))`)
)

// DefaultStrategies are tried in order for every node; the first one that
// yields a URL wins.
var DefaultStrategies = []Strategy{
	{Name: "img", Extract: imgStrategy},
	{Name: "style", Extract: styleStrategy},
	{Name: "data-attr", Extract: dataAttrStrategy},
}

// AnchorFallback is the document-wide last resort used only when no node
// yielded anything.
var AnchorFallback = Strategy{Name: "anchor", Extract: anchorStrategy}

func imgStrategy(n *html.Node, base *url.URL, scoped bool) []found {
	if n.DataAtom == atom.Img {
		if f, ok := imgSource(n, base); ok {
			return []found{f}
		}
		return nil
	}
	if !scoped {
		return nil
	}
	var out []found
	elements(n, func(c *html.Node) {
		if c != n && c.DataAtom == atom.Img {
			if f, ok := imgSource(c, base); ok {
				out = append(out, f)
			}
		}
	})
	return out
}

func imgSource(img *html.Node, base *url.URL) (found, bool) {
	for _, key := range imgSourceAttrs {
		if abs, ok := urlset.Resolve(base, attr(img, key)); ok {
			return found{URL: abs, Alt: attr(img, "alt"), Node: img}, true
		}
	}
	return found{}, false
}

func styleStrategy(n *html.Node, base *url.URL, _ bool) []found {
	style := attr(n, "style")
	if style == "" {
		return nil
	}
	raw := styleURLs(style)
	out := make([]found, 0, len(raw))
	for _, r := range raw {
		if abs, ok := urlset.Resolve(base, r); ok {
			out = append(out, found{URL: abs, Alt: nodeLabel(n), Node: n})
		}
	}
	return out
}

// styleURLs returns the url(...) references in an inline style, falling back
// to the looser "url: ..." / "url=..." form when there are none.
func styleURLs(style string) []string {
	matches := styleURL.FindAllStringSubmatch(style, -1)
	if len(matches) == 0 {
		matches = styleLoose.FindAllStringSubmatch(style, -1)
	}
	var out []string
	for _, m := range matches {
		for _, g := range m[1:] {
			if g = strings.TrimSpace(g); g != "" {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

func dataAttrStrategy(n *html.Node, base *url.URL, _ bool) []found {
	for _, key := range DataHintAttrs {
		if abs, ok := urlset.Resolve(base, attr(n, key)); ok {
			return []found{{URL: abs, Alt: nodeLabel(n), Node: n}}
		}
	}
	return nil
}

func anchorStrategy(n *html.Node, base *url.URL, _ bool) []found {
	if n.DataAtom != atom.A {
		return nil
	}
	abs, ok := urlset.Resolve(base, attr(n, "href"))
	if !ok || !naming.HasImageExtension(abs) {
		return nil
	}
	return []found{{URL: abs, Alt: text(n), Node: n}}
}

// nodeLabel is the best alt text for a non-img node.
func nodeLabel(n *html.Node) string {
	if v := attr(n, "alt"); v != "" {
		return v
	}
	return attr(n, "title")
}
