package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cpcscraper/pkg/catalog"
	"cpcscraper/pkg/config"
	errs "cpcscraper/pkg/errors"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/manifest"
	"cpcscraper/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves a miniature catalog: pages by request URI, images under
// /upload/ and /banner/, and counts every hit.
type fakeSite struct {
	srv *httptest.Server

	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
	fail  map[string]bool
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{pages: map[string]string{}, hits: map[string]int{}, fail: map[string]bool{}}
	site.srv = httptest.NewServer(http.HandlerFunc(site.serve))
	t.Cleanup(site.srv.Close)
	return site
}

func (f *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.RequestURI()]++
	failing := f.fail[r.URL.RequestURI()]
	page, ok := f.pages[r.URL.RequestURI()]
	f.mu.Unlock()

	switch {
	case failing:
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	case ok:
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		fmt.Fprint(w, page)
	case strings.HasPrefix(r.URL.Path, "/upload/"), strings.HasPrefix(r.URL.Path, "/banner/"):
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprintf(w, "jpeg:%s", r.URL.Path)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSite) set(uri, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[uri] = body
}

func (f *fakeSite) setFail(uri string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[uri] = fail
}

func (f *fakeSite) hitCount(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[uri]
}

func (f *fakeSite) uploadHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for uri, c := range f.hits {
		if strings.HasPrefix(uri, "/upload/") {
			n += c
		}
	}
	return n
}

const (
	vehicleURI = "/C_Products.aspx?n=1&_CSN=13"
	greaseURI  = "/C_Products.aspx?n=1&_CSN=76"
	detail1URI = "/C_Products_Detail.aspx?n=1&s=1"
	detail2URI = "/C_Products_Detail.aspx?n=1&s=2"
	detail3URI = "/C_Products_Detail.aspx?n=1&s=3"
)

// withCatalog fills the site with two categories and three products.
func withCatalog(t *testing.T) *fakeSite {
	site := newFakeSite(t)
	site.set("/catalog", `<html><body>
		<a href="`+vehicleURI+`">車輛用油保養品</a>
		<a href="`+greaseURI+`">滑脂系列</a>
	</body></html>`)
	site.set(vehicleURI, `<html><body>
		<a href="C_Products_Detail.aspx?n=1&s=1">國光牌 超級機油</a>
		<a href="C_Products_Detail.aspx?n=1&s=2" title="國光牌 齒輪油"><img src="/upload/thumb.gif"></a>
		<a href="/about">About</a>
	</body></html>`)
	site.set(greaseURI, `<html><body>
		<a href="C_Products_Detail.aspx?n=1&s=3">國光牌 鋰基滑脂</a>
	</body></html>`)
	site.set(detail1URI, `<html><body>
		<img src="/upload/p1a.jpg" alt="front">
		<div style="background-image:url('/upload/p1b.png')"></div>
		<img src="https://cdn.other.example/upload/x.jpg">
		<img src="/images/spacer.gif">
		<img src="/upload/p1a.jpg" alt="duplicate">
	</body></html>`)
	site.set(detail2URI, `<html><body><span data-src="/upload/p2.jpg"></span></body></html>`)
	site.set(detail3URI, `<html><body><img src="/upload/g1.jpg"></body></html>`)
	return site
}

func testTable(t *testing.T, site *fakeSite) *catalog.Table {
	t.Helper()
	table, err := catalog.Parse([]byte(`
base_url: ` + site.srv.URL + `/C_Products.aspx?n=1
categories:
  - name: 車輛用油
    csn: "13"
    synonyms: [vehicle oil]
  - name: 滑脂
    csn: "76"
`))
	require.NoError(t, err)
	return table
}

func testConfig(site *fakeSite, out string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Site.CatalogURL = site.srv.URL + "/catalog"
	cfg.HTTP.Delay = 0
	cfg.HTTP.Retries = 1
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.Catalog.Categories = []string{"車輛用油", "滑脂"}
	cfg.Output.Directory = out
	cfg.Download.Workers = 2
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, site *fakeSite, opts ...Option) (*Scraper, *bytes.Buffer) {
	t.Helper()
	var listing bytes.Buffer
	base := []Option{
		WithCatalog(testTable(t, site)),
		WithLogger(logger.NewNopLogger()),
		WithOutput(&listing),
		WithCheckpointDir(filepath.Join(t.TempDir(), "checkpoints")),
	}
	s, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return s, &listing
}

func TestRunCategoryMode(t *testing.T) {
	site := withCatalog(t)
	out := t.TempDir()
	s, _ := newTestScraper(t, testConfig(site, out), site)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"車輛用油", "滑脂"}, summary.Categories)
	assert.Equal(t, 4, summary.Counts[models.StatusOK])
	assert.Equal(t, 4, summary.Candidates)
	assert.Zero(t, summary.FailedCount())

	for _, p := range []string{
		filepath.Join(out, "車輛用油", "國光牌 超級機油", "p1a.jpg"),
		filepath.Join(out, "車輛用油", "國光牌 超級機油", "p1b.png"),
		filepath.Join(out, "車輛用油", "國光牌 齒輪油", "p2.jpg"),
		filepath.Join(out, "滑脂", "國光牌 鋰基滑脂", "g1.jpg"),
	} {
		assert.FileExists(t, p)
	}
	assert.Zero(t, site.hitCount("/images/spacer.gif"), "predicate rejects non-product images")

	require.Len(t, summary.Products, 3)
	assert.Equal(t, "國光牌 超級機油", summary.Products[0].Product)
	assert.Len(t, summary.Products[0].Images, 2)

	m, err := manifest.Load(filepath.Join(out, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, site.srv.URL+detail1URI, m.Candidates[0].Source)
	assert.Equal(t, "front", m.Candidates[0].Image.Alt)
}

func TestRunTwiceMakesNoImageRequests(t *testing.T) {
	site := withCatalog(t)
	out := t.TempDir()

	s, _ := newTestScraper(t, testConfig(site, out), site)
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	firstHits := site.uploadHits()

	s, _ = newTestScraper(t, testConfig(site, out), site)
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, firstHits, site.uploadHits(), "existing files cost no requests")
	assert.Equal(t, 4, summary.Counts[models.StatusExists])
	assert.Zero(t, summary.Counts[models.StatusOK])
}

func TestRunContinuesWithPartialCategories(t *testing.T) {
	site := withCatalog(t)
	cfg := testConfig(site, t.TempDir())
	cfg.Catalog.Mode = ModeTable
	cfg.Catalog.Categories = []string{"vehicle oil", "不存在"}
	s, _ := newTestScraper(t, cfg, site)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"車輛用油"}, summary.Categories)
	require.NotEmpty(t, summary.Problems)
	assert.Contains(t, summary.Problems[0], "不存在")
}

func TestRunFailsWhenNoCategoryResolves(t *testing.T) {
	site := withCatalog(t)
	cfg := testConfig(site, t.TempDir())
	cfg.Catalog.Categories = []string{"不存在", "也不存在"}
	s, _ := newTestScraper(t, cfg, site)

	_, err := s.Run(context.Background())
	var notFound *errs.CategoryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"不存在", "也不存在"}, notFound.Missing)
	assert.Zero(t, site.uploadHits())
}

func TestResolveCategoriesFromCatalogPage(t *testing.T) {
	site := withCatalog(t)
	cfg := testConfig(site, t.TempDir())
	cfg.Catalog.Mode = ModePage
	s, _ := newTestScraper(t, cfg, site)

	refs, err := s.ResolveCategories(context.Background(), []string{"車輛用油", "海運用油"})
	var notFound *errs.CategoryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"海運用油"}, notFound.Missing)
	require.Len(t, refs, 1)
	assert.Equal(t, site.srv.URL+vehicleURI, refs[0].URL)
}

func TestResolveCategoriesAutoUsesPageForLeftovers(t *testing.T) {
	site := withCatalog(t)
	site.set("/catalog", `<a href="/marine">海運用油</a>`)
	cfg := testConfig(site, t.TempDir())
	s, _ := newTestScraper(t, cfg, site)

	refs, err := s.ResolveCategories(context.Background(), []string{"滑脂", "海運用油"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, site.srv.URL+greaseURI, refs[0].URL)
	assert.Equal(t, site.srv.URL+"/marine", refs[1].URL)
}

func TestRunFailsWhenNoCategoryHasProducts(t *testing.T) {
	site := withCatalog(t)
	site.set(vehicleURI, `<p>empty</p>`)
	site.set(greaseURI, `<p>empty</p>`)
	s, _ := newTestScraper(t, testConfig(site, t.TempDir()), site)

	_, err := s.Run(context.Background())
	var noProducts *errs.NoProductsFoundError
	require.ErrorAs(t, err, &noProducts)
	assert.Contains(t, err.Error(), vehicleURI)
	assert.Contains(t, err.Error(), greaseURI)
}

func TestRunSkipsFailingCategory(t *testing.T) {
	site := withCatalog(t)
	site.setFail(greaseURI, true)
	s, _ := newTestScraper(t, testConfig(site, t.TempDir()), site)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Counts[models.StatusOK])
	assert.NotEmpty(t, summary.Problems)
}

func TestRunFollowDetailsWithoutProductLinks(t *testing.T) {
	site := withCatalog(t)
	site.set(greaseURI, `<a href="/grease/a">A</a><a href="https://elsewhere.example/x">X</a>`)
	site.set("/grease/a", `<img src="/upload/ga.jpg">`)
	cfg := testConfig(site, t.TempDir())
	cfg.Catalog.Categories = []string{"滑脂"}
	cfg.Extract.FollowDetails = true
	s, _ := newTestScraper(t, cfg, site)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[models.StatusOK])
	assert.FileExists(t, filepath.Join(cfg.Output.Directory, "滑脂", "grease_a", "ga.jpg"))
}

func TestRunResumeSkipsCompletedProducts(t *testing.T) {
	site := withCatalog(t)
	site.setFail("/upload/p2.jpg", true)
	out := t.TempDir()
	ckpt := filepath.Join(t.TempDir(), "checkpoints")

	cfg := testConfig(site, out)
	cfg.Catalog.Categories = []string{"車輛用油"}
	s, _ := newTestScraper(t, cfg, site, WithCheckpointDir(ckpt))
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[models.StatusFailed])
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, site.srv.URL+"/upload/p2.jpg", summary.Failures[0].URL)

	site.setFail("/upload/p2.jpg", false)
	cfg = testConfig(site, out)
	cfg.Catalog.Categories = []string{"車輛用油"}
	cfg.Download.Resume = true
	s, _ = newTestScraper(t, cfg, site, WithCheckpointDir(ckpt))
	summary, err = s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resumed)
	assert.Equal(t, 1, site.hitCount(detail1URI), "completed product page is not fetched again")
	assert.Equal(t, 1, summary.Counts[models.StatusOK])
	assert.FileExists(t, filepath.Join(out, "車輛用油", "國光牌 齒輪油", "p2.jpg"))

	entries, err := os.ReadDir(ckpt)
	require.NoError(t, err)
	assert.Empty(t, entries, "clean run removes the checkpoint")
}

func TestRunNumberedFilenames(t *testing.T) {
	site := withCatalog(t)
	cfg := testConfig(site, t.TempDir())
	cfg.Catalog.Categories = []string{"車輛用油"}
	cfg.Download.Numbered = true
	s, _ := newTestScraper(t, cfg, site)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	dir := filepath.Join(cfg.Output.Directory, "車輛用油", "國光牌 超級機油")
	assert.FileExists(t, filepath.Join(dir, "01.jpg"))
	assert.FileExists(t, filepath.Join(dir, "02.png"))
}

func TestRunListOnly(t *testing.T) {
	site := withCatalog(t)
	cfg := testConfig(site, t.TempDir())
	cfg.Download.ListOnly = true
	s, listing := newTestScraper(t, cfg, site)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, site.uploadHits())
	assert.Zero(t, summary.Total())
	assert.Contains(t, listing.String(), "Found 4 image candidates.")
	assert.Contains(t, listing.String(), "/upload/p1a.jpg")
}

func TestRunHonoursRobots(t *testing.T) {
	site := withCatalog(t)
	site.set("/robots.txt", "User-agent: *\nDisallow: /catalog\n")
	s, _ := newTestScraper(t, testConfig(site, t.TempDir()), site)

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrDisallowed)
	assert.Zero(t, site.hitCount("/catalog"))

	cfg := testConfig(site, t.TempDir())
	cfg.Site.RespectRobots = false
	s, _ = newTestScraper(t, cfg, site)
	_, err = s.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunCancelled(t *testing.T) {
	site := withCatalog(t)
	s, _ := newTestScraper(t, testConfig(site, t.TempDir()), site)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	assert.Error(t, err)
	assert.Zero(t, site.uploadHits())
}

const galleryURI = "/gallery"

func withGallery(t *testing.T) *fakeSite {
	site := newFakeSite(t)
	site.set(galleryURI, `<html><body>
		<div class="gallery">
			<img src="/upload/a.jpg" alt="A">
			<div class="slide" style="background-image: url(/upload/b.png)"></div>
		</div>
		<img src="/banner/top.jpg">
		<img src="https://cdn.other.example/c.jpg">
		<a href="/item/1">one</a>
		<a href="/item/2">two</a>
		<a href="/item/3">three</a>
	</body></html>`)
	site.set("/item/1", `<div class="gallery"><img src="/upload/i1.jpg"></div>`)
	site.set("/item/2", `<div class="gallery"><img src="/upload/a.jpg"></div>`)
	site.set("/item/3", `<p>no gallery</p><img src="/misc/fallback.gif">`)
	return site
}

func TestRunPage(t *testing.T) {
	site := withGallery(t)
	cfg := testConfig(site, t.TempDir())
	s, listing := newTestScraper(t, cfg, site)

	summary, err := s.RunPage(context.Background(), site.srv.URL+galleryURI)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Candidates, "other hosts are dropped")
	assert.Equal(t, 3, summary.Counts[models.StatusOK])
	assert.FileExists(t, filepath.Join(cfg.Output.Directory, "top.jpg"))
	assert.Equal(t, 1, site.hitCount("/banner/top.jpg"), "page mode downloads outside /upload/")
	assert.FileExists(t, filepath.Join(cfg.Output.Directory, manifest.FileName))
	assert.Contains(t, listing.String(), "Found 3 image candidates.")
	assert.Zero(t, site.hitCount("/item/1"))
}

func TestRunPageScopedWithFollowDetails(t *testing.T) {
	site := withGallery(t)
	cfg := testConfig(site, t.TempDir())
	cfg.Extract.Selector = ".gallery img, .gallery .slide"
	cfg.Extract.FollowDetails = true
	cfg.Extract.MaxDetailPages = 3
	cfg.Download.ListOnly = true
	s, _ := newTestScraper(t, cfg, site)

	summary, err := s.RunPage(context.Background(), site.srv.URL+galleryURI)
	require.NoError(t, err)

	m, err := manifest.Load(filepath.Join(cfg.Output.Directory, manifest.FileName))
	require.NoError(t, err)
	var got []string
	for _, e := range m.Candidates {
		got = append(got, strings.TrimPrefix(e.Image.URL, site.srv.URL))
	}
	assert.Equal(t, []string{"/upload/a.jpg", "/upload/b.png", "/upload/i1.jpg", "/misc/fallback.gif"}, got,
		"scoped matches first, duplicates dropped, unscoped fallback on pages the scope misses")
	assert.Equal(t, 4, summary.Candidates)
	assert.Zero(t, site.uploadHits(), "list-only downloads nothing")
}

func TestRunPageXPathScope(t *testing.T) {
	site := withGallery(t)
	cfg := testConfig(site, t.TempDir())
	cfg.Extract.XPath = `//div[@class="gallery"]/img`
	cfg.Download.ListOnly = true
	s, _ := newTestScraper(t, cfg, site)

	summary, err := s.RunPage(context.Background(), site.srv.URL+galleryURI)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Candidates)
}

func TestRunPageErrors(t *testing.T) {
	site := withGallery(t)
	site.set("/empty", `<p>nothing</p>`)
	s, _ := newTestScraper(t, testConfig(site, t.TempDir()), site)

	_, err := s.RunPage(context.Background(), site.srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = s.RunPage(context.Background(), site.srv.URL+"/missing")
	var failure *errs.FetchFailure
	assert.True(t, errors.As(err, &failure))
}

func TestNewRejectsInvalidScope(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extract.XPath = "//div["
	_, err := New(cfg, WithLogger(logger.NewNopLogger()))
	assert.Error(t, err)
}

func TestPageName(t *testing.T) {
	assert.Equal(t, "grease_a", pageName("https://x.org/grease/a"))
	assert.Equal(t, "C_Products.aspx_n_1__CSN_13", pageName("https://x.org/C_Products.aspx?n=1&_CSN=13"))
}

func TestWriteSummary(t *testing.T) {
	s := models.NewSummary("scrape", "out")
	s.Record("p", models.DownloadOutcome{SourceURL: "https://x.org/upload/a.jpg", Status: models.StatusOK})
	s.Record("p", models.DownloadOutcome{SourceURL: "https://x.org/upload/b.jpg", Status: models.StatusNotImage})
	s.Products = []models.DownloadResult{{Category: "滑脂", Product: "p", Images: []string{"a.jpg"}, Failed: 1}}
	s.Finished = s.Started.Add(time.Second)

	var buf bytes.Buffer
	WriteSummary(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "ok=1")
	assert.Contains(t, out, "not-image=1")
	assert.Contains(t, out, "滑脂 / p: 1 saved")
	assert.Contains(t, out, "https://x.org/upload/b.jpg")
}

func TestWriteListingCaps(t *testing.T) {
	m := manifest.New("https://x.org/")
	for i := 0; i < 45; i++ {
		m.Add("https://x.org/", models.ImageCandidate{URL: fmt.Sprintf("https://x.org/upload/%d.jpg", i)})
	}
	var buf bytes.Buffer
	WriteListing(&buf, m, listingLimit)
	assert.Contains(t, buf.String(), "[40]")
	assert.NotContains(t, buf.String(), "[41]")
	assert.Contains(t, buf.String(), "... and 5 more")
}
