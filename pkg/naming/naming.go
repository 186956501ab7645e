// Package naming derives filesystem-safe names for products, categories
// and downloaded images.
package naming

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var unsafeRun = regexp.MustCompile(`[^0-9A-Za-z\-._]+`)

// ImageExtensions are the extensions treated as images regardless of the
// served content type.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

// SanitizeName maps any string to a non-empty name made only of ASCII
// letters, digits, '-', '.' and '_', with no leading or trailing '.' or '_'.
func SanitizeName(raw string) string {
	name := unsafeRun.ReplaceAllString(strings.TrimSpace(raw), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "product"
	}
	return name
}

// DirName is SanitizeName for labels that are usually non-ASCII, such as
// Chinese category and product names. Those would sanitize to a run of
// underscores, so the label is kept when it is already path-safe. A label
// that had to be altered gets "_" plus ShortHash of the label, so "A/B"
// and "A_B" land in different directories.
func DirName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return SanitizeName(raw)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:*?"<>|`) || hasControl(name) {
		return SanitizeName(name) + "_" + ShortHash(name)
	}
	if trimmed := strings.Trim(name, ". "); trimmed != name {
		if trimmed == "" {
			return SanitizeName(name) + "_" + ShortHash(name)
		}
		return trimmed + "_" + ShortHash(name)
	}
	return name
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

// FilenameForURL returns the sanitized base name of the URL path. A name
// without an extension gets "_" plus the first 8 hex digits of the SHA-1 of
// the full URL, so distinct extensionless URLs never collide.
func FilenameForURL(raw string) string {
	base := "image"
	if u, err := url.Parse(raw); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			if unescaped, err := url.PathUnescape(b); err == nil {
				b = unescaped
			}
			base = b
		}
	}
	name := SanitizeName(base)
	if base == "image" {
		name = "image"
	}
	if path.Ext(name) == "" {
		name = name + "_" + ShortHash(raw)
	}
	return name
}

// NumberedFilename returns "01.jpg", "02.png", ... using the extension of
// the URL path, defaulting to ".jpg".
func NumberedFilename(index int, raw string) string {
	ext := ".jpg"
	if u, err := url.Parse(raw); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); IsImageExt(e) {
			ext = e
		}
	}
	return fmt.Sprintf("%02d%s", index, ext)
}

// ShortHash is the first 8 hex digits of the SHA-1 of s.
func ShortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// IsImageExt reports whether ext (with leading dot) is a known image extension.
func IsImageExt(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// HasImageExtension reports whether the URL path, query ignored, ends with
// a known image extension.
func HasImageExtension(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return IsImageExt(path.Ext(u.Path))
}
