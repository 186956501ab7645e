package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
	"time"

	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/retry"

	"golang.org/x/net/html/charset"
)

// maxBodyBytes bounds any single response read into memory.
const maxBodyBytes = 64 << 20

// ErrBodyTooLarge is returned for responses longer than the body limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Doer is the pluggable transport. *http.Client satisfies it; a client
// that solves site challenges can be swapped in without touching callers.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Payload is a fetched binary body.
type Payload struct {
	URL         string
	Body        []byte
	ContentType string
}

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	Attempts  int
	Delay     time.Duration
	UserAgent string
	Insecure  bool
	Headers   map[string]string

	// Client overrides the default cookie-keeping http.Client.
	Client Doer
	// Backoff overrides delay*attempt.
	Backoff retry.BackoffStrategy
	// MaxBodyBytes caps a response body; zero means 64 MiB.
	MaxBodyBytes int64
	// TransientOnly stops retrying failures errs.IsTransient rejects, such
	// as 404 or 403. By default every failure is retried.
	TransientOnly bool

	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// Fetcher performs GET requests with per-request timeouts and retries.
// One Fetcher is shared by every component of a run and is safe for
// concurrent use.
type Fetcher struct {
	client   Doer
	timeout  time.Duration
	attempts int
	backoff  retry.BackoffStrategy
	retryIf  func(ctx context.Context) func(error) bool
	maxBody  int64
	onRetry  func(attempt int, err error, delay time.Duration)
	logger   logger.Logger

	mu      sync.RWMutex
	headers map[string]string

	requests atomic.Int64
}

// New builds a Fetcher from opts, filling defaults for zero values.
func New(opts Options) *Fetcher {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(opts.Insecure)
	}
	if opts.Insecure {
		log.Warn("TLS certificate verification is disabled")
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = retry.Proportional(opts.Delay)
	}

	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = maxBodyBytes
	}
	retryIf := retry.UntilCanceled
	if opts.TransientOnly {
		retryIf = retry.TransientOnly
	}

	f := &Fetcher{
		client:   client,
		retryIf:  retryIf,
		maxBody:  opts.MaxBodyBytes,
		timeout:  opts.Timeout,
		attempts: opts.Attempts,
		backoff:  backoff,
		onRetry:  opts.OnRetry,
		logger:   log.WithField("component", "fetcher"),
		headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
	}
	if opts.UserAgent != "" {
		f.headers["User-Agent"] = opts.UserAgent
	}
	f.SetHeaders(opts.Headers)
	return f
}

// NewHTTPClient returns a client with a cookie jar, so challenge cookies set
// on the first response are replayed on later ones.
func NewHTTPClient(insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
	}
	jar, _ := cookiejar.New(nil)
	return &http.Client{Transport: transport, Jar: jar}
}

// SetHeader sets a header sent with every request
func (f *Fetcher) SetHeader(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (f *Fetcher) SetHeaders(headers map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, value := range headers {
		f.headers[key] = value
	}
}

// Requests reports how many HTTP requests have been sent.
func (f *Fetcher) Requests() int64 {
	return f.requests.Load()
}

// FetchText fetches url and returns its body decoded to UTF-8 using the
// declared or sniffed charset.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	p, err := f.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	r, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return string(p.Body), nil
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	return string(text), nil
}

// FetchBinary fetches url and returns the raw body with its content type.
func (f *Fetcher) FetchBinary(ctx context.Context, url string) (*Payload, error) {
	return f.fetch(ctx, url)
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*Payload, error) {
	attempts := 0
	log := f.logger.WithField("url", url)

	var lastErr error
	p, err := retry.DoWithResult(ctx, func() (*Payload, error) {
		attempts++
		p, err := f.get(ctx, url)
		if err != nil {
			lastErr = err
		}
		return p, err
	}, &retry.Config{
		MaxAttempts: f.attempts,
		Backoff:     f.backoff,
		RetryIf:     f.retryIf(ctx),
		OnRetry:     f.onRetry,
		Logger:      log,
	})
	if err == nil {
		return p, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &errs.FetchFailure{URL: url, Attempts: attempts, Err: lastErr}
}

// get performs one attempt under its own timeout.
func (f *Fetcher) get(ctx context.Context, url string) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, http.MethodGet, url, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errs.FromStatus(resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, url, f.maxBody)
	}

	return &Payload{
		URL:         finalURL(resp, url),
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// do sends one request, optionally with the configured headers.
func (f *Fetcher) do(ctx context.Context, method, url string, withHeaders bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	if withHeaders {
		f.mu.RLock()
		for key, value := range f.headers {
			req.Header.Set(key, value)
		}
		f.mu.RUnlock()
	}

	f.requests.Add(1)
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   method,
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	logger.LogRequest(f.logger, method, url, resp.StatusCode, time.Since(start))
	return resp, nil
}

func finalURL(resp *http.Response, requested string) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return requested
}
