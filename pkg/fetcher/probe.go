package fetcher

import (
	"context"
	"io"
	"net/http"
	"unicode/utf8"
)

// ProbeResult describes one diagnostic request.
type ProbeResult struct {
	Label      string
	Method     string
	StatusCode int
	Status     string
	FinalURL   string
	Header     http.Header
	Body       string
}

// Probe sends a single request without retry and captures up to bodyChars
// characters of the response. With withHeaders false the request carries
// only Go's defaults, which shows whether the site rejects bare clients.
func (f *Fetcher) Probe(ctx context.Context, method, url string, withHeaders bool, bodyChars int) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, method, url, withHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &ProbeResult{
		Method:     method,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		FinalURL:   finalURL(resp, url),
		Header:     resp.Header,
	}
	if method != http.MethodHead && bodyChars > 0 {
		// UTF-8 runes are at most 4 bytes.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, int64(bodyChars)*4))
		res.Body = truncateRunes(string(raw), bodyChars)
	}
	return res, nil
}

// AccessReport runs the bare GET, browser-header GET and HEAD probes in order.
// A probe that errors is reported with StatusCode 0 and the error in Status.
func (f *Fetcher) AccessReport(ctx context.Context, url string, bodyChars int) []*ProbeResult {
	steps := []struct {
		label   string
		method  string
		headers bool
	}{
		{"GET without headers", http.MethodGet, false},
		{"GET with browser headers", http.MethodGet, true},
		{"HEAD with browser headers", http.MethodHead, true},
	}

	out := make([]*ProbeResult, 0, len(steps))
	for _, s := range steps {
		res, err := f.Probe(ctx, s.method, url, s.headers, bodyChars)
		if err != nil {
			res = &ProbeResult{Method: s.method, Status: err.Error()}
		}
		res.Label = s.label
		out = append(out, res)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
