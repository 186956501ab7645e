// Package robots answers whether a URL may be fetched under the site's
// robots.txt. Missing or unreadable robots files allow everything.
package robots

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"cpcscraper/pkg/fetcher"
	"cpcscraper/pkg/logger"

	"github.com/temoto/robotstxt"
)

// maxRobotsChars bounds how much of a robots.txt is read.
const maxRobotsChars = 512 << 10

// Prober is the single-request side of *fetcher.Fetcher.
type Prober interface {
	Probe(ctx context.Context, method, url string, withHeaders bool, bodyChars int) (*fetcher.ProbeResult, error)
}

// Checker caches one robots.txt per origin. It is safe for concurrent use.
type Checker struct {
	prober    Prober
	userAgent string
	logger    logger.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewChecker creates a Checker that evaluates rules for userAgent.
func NewChecker(p Prober, userAgent string, log logger.Logger) *Checker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Checker{
		prober:    p,
		userAgent: userAgent,
		logger:    log.WithField("component", "robots"),
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched.
func (c *Checker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return true
	}
	data := c.rules(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, c.userAgent)
}

func (c *Checker) rules(ctx context.Context, origin string) *robotstxt.RobotsData {
	c.mu.Lock()
	defer c.mu.Unlock()
	if data, ok := c.cache[origin]; ok {
		return data
	}

	var data *robotstxt.RobotsData
	res, err := c.prober.Probe(ctx, http.MethodGet, origin+"/robots.txt", true, maxRobotsChars)
	switch {
	case err != nil:
		c.logger.WithError(err).Debug("robots.txt unavailable, allowing all")
	case res.StatusCode != http.StatusOK:
		c.logger.WithField("status_code", res.StatusCode).Debug("No robots.txt, allowing all")
	default:
		parsed, perr := robotstxt.FromString(res.Body)
		if perr != nil {
			c.logger.WithError(perr).Warn("Unparseable robots.txt, allowing all")
		} else {
			data = parsed
		}
	}
	if ctx.Err() == nil {
		c.cache[origin] = data
	}
	return data
}
