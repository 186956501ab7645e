// Package urlset resolves, filters and deduplicates URLs.
package urlset

import (
	"net/url"
	"strings"
)

// Dedupe keeps the first element for every key, preserving order.
func Dedupe[T any, K comparable](xs []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(xs))
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		k := key(x)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, x)
	}
	return out
}

// Strings dedupes a string slice.
func Strings(xs []string) []string {
	return Dedupe(xs, func(s string) string { return s })
}

// SameOrigin keeps the URLs whose scheme and host match reference.
// Unparseable URLs are dropped.
func SameOrigin(urls []string, reference string) []string {
	ref, err := url.Parse(reference)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		if IsSameOrigin(raw, ref) {
			out = append(out, raw)
		}
	}
	return out
}

// IsSameOrigin compares scheme and host (case-insensitively) with ref.
func IsSameOrigin(raw string, ref *url.URL) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, ref.Scheme) && strings.EqualFold(u.Host, ref.Host)
}

// Resolve turns href into an absolute URL against base. It returns false
// for empty, fragment-only, data: and script-like hrefs. The fragment is
// dropped from the result.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	switch scheme := strings.ToLower(schemeOf(href)); scheme {
	case "javascript", "mailto", "tel", "data":
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if !abs.IsAbs() {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}

func schemeOf(href string) string {
	if i := strings.IndexByte(href, ':'); i > 0 {
		s := href[:i]
		if !strings.ContainsAny(s, "/?#") {
			return s
		}
	}
	return ""
}

// PathOf returns the path component of raw, or raw itself if it does not parse.
func PathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
