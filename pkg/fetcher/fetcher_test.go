package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(attempts int, delay time.Duration) (*Fetcher, *logger.TestLogger) {
	tl := logger.NewTestLogger()
	return New(Options{
		Timeout:   2 * time.Second,
		Attempts:  attempts,
		Delay:     delay,
		UserAgent: "cpcscraper-test",
		Logger:    tl,
	}), tl
}

func TestFetchTextSendsHeaders(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>車輛用油</body></html>"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(1, 0)
	f.SetHeader("Cookie", "cf_clearance=abc")

	text, err := f.FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "車輛用油")
	assert.Equal(t, "cpcscraper-test", gotUA)
	assert.Equal(t, "cf_clearance=abc", gotCookie)
	assert.EqualValues(t, 1, f.Requests())
}

func TestFetchTextDecodesDeclaredCharset(t *testing.T) {
	// "油" in Big5 is 0xAA 0x6F.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=big5")
		_, _ = w.Write([]byte{'<', 'p', '>', 0xAA, 0x6F, '<', '/', 'p', '>'})
	}))
	defer srv.Close()

	f, _ := newTestFetcher(1, 0)
	text, err := f.FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>油</p>", text)
}

func TestFetchBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	f, _ := newTestFetcher(1, 0)
	p, err := f.FetchBinary(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, p.Body)
	assert.Equal(t, srv.URL+"/a.png", p.URL)
}

func TestFetchRetriesWithIncreasingDelay(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var mu sync.Mutex
	var waits []time.Duration
	tl := logger.NewTestLogger()
	f := New(Options{
		Timeout:  time.Second,
		Attempts: 3,
		Delay:    5 * time.Millisecond,
		Logger:   tl,
		OnRetry: func(_ int, _ error, d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			waits = append(waits, d)
		},
	})

	text, err := f.FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond}, waits)
	assert.True(t, tl.HasMessage("retrying operation"))
}

func TestFetchFailureAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(3, time.Millisecond)
	_, err := f.FetchText(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	var ff *errs.FetchFailure
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, srv.URL+"/missing", ff.URL)
	assert.Equal(t, 3, ff.Attempts)
	assert.EqualValues(t, 3, calls.Load(), "non-2xx statuses are retried")

	var reqErr *errs.Error
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, errs.ErrorTypeNotFound, reqErr.Type)
}

func TestFetchTransientOnlyStopsOnNotFound(t *testing.T) {
	var missing, flaky atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			missing.Add(1)
			http.NotFound(w, r)
			return
		}
		if flaky.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Options{
		Timeout:       2 * time.Second,
		Attempts:      3,
		Delay:         time.Millisecond,
		Logger:        logger.NewNopLogger(),
		TransientOnly: true,
	})

	_, err := f.FetchText(context.Background(), srv.URL+"/missing")
	var ff *errs.FetchFailure
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, 1, ff.Attempts)
	assert.EqualValues(t, 1, missing.Load())

	text, err := f.FetchText(context.Background(), srv.URL+"/flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, flaky.Load(), "503 is still retried")
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(make([]byte, 65))
	}))
	defer srv.Close()

	opts := Options{Timeout: 2 * time.Second, Attempts: 1, Logger: logger.NewNopLogger(), MaxBodyBytes: 64}
	_, err := New(opts).FetchBinary(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	opts.MaxBodyBytes = 65
	p, err := New(opts).FetchBinary(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, p.Body, 65, "a body at the limit is kept whole")
}

func TestFetchTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte("late but fine"))
	}))
	defer srv.Close()

	f := New(Options{Timeout: 50 * time.Millisecond, Attempts: 2, Logger: logger.NewNopLogger()})
	text, err := f.FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "late but fine", text)
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := New(Options{
		Timeout:  time.Second,
		Attempts: 5,
		Delay:    time.Hour,
		Logger:   logger.NewNopLogger(),
		OnRetry:  func(int, error, time.Duration) { cancel() },
	})

	_, err := f.FetchText(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentFetchesShareClient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(1, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.FetchBinary(context.Background(), srv.URL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 16, calls.Load())
	assert.EqualValues(t, 16, f.Requests())
}

type stubDoer struct {
	calls atomic.Int32
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.calls.Add(1)
	return nil, errors.New("dial refused")
}

func TestPluggableClient(t *testing.T) {
	stub := &stubDoer{}
	f := New(Options{Attempts: 2, Client: stub, Logger: logger.NewNopLogger()})

	_, err := f.FetchText(context.Background(), "https://cpclube.cpc.com.tw/")
	require.Error(t, err)
	assert.EqualValues(t, 2, stub.calls.Load())

	var reqErr *errs.Error
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, errs.ErrorTypeNetwork, reqErr.Type)
}

func TestAccessReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "cpcscraper-test" {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		w.Header().Set("X-Test", "1")
		_, _ = w.Write([]byte("歡迎光臨 welcome"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(1, 0)
	report := f.AccessReport(context.Background(), srv.URL, 4)
	require.Len(t, report, 3)

	assert.Equal(t, http.StatusForbidden, report[0].StatusCode)
	assert.Equal(t, http.StatusOK, report[1].StatusCode)
	assert.Equal(t, "歡迎光臨", report[1].Body)
	assert.Equal(t, "1", report[1].Header.Get("X-Test"))
	assert.Equal(t, http.MethodHead, report[2].Method)
	assert.Empty(t, report[2].Body)
}
