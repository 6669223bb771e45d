package crawl

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/urlnorm"
)

const wikiBase = "https://wiki.test"

// site is a fake wiki: path -> outgoing links. A page's HTML is its links, one per line.
type site map[string][]string

func (s site) html(path string) string { return strings.Join(s[path], "\n") }

// --- fetcher ---

type fakeFetcher struct {
	mu     sync.Mutex
	site   site
	fail   map[string]error
	delay  map[string]time.Duration
	onCall func(url string)
	calls  map[string]int
}

func newFakeFetcher(s site) *fakeFetcher {
	return &fakeFetcher{
		site:  s,
		fail:  map[string]error{},
		delay: map[string]time.Duration{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (domain.FetchResult, error) {
	path := strings.TrimPrefix(url, wikiBase)
	f.mu.Lock()
	f.calls[path]++
	err := f.fail[path]
	d := f.delay[path]
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return domain.FetchResult{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.FetchResult{}, err
	}
	if _, ok := f.site[path]; !ok {
		return domain.FetchResult{StatusCode: 404}, domain.NewFetchError(url, 404)
	}
	return domain.FetchResult{HTML: f.site.html(path), StatusCode: 200}, nil
}

func (f *fakeFetcher) callsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// --- link extractor ---

type lineLinks struct {
	norm *urlnorm.Normalizer
}

func (l lineLinks) ExtractLinks(html, _ string) []string {
	var out []string
	for _, line := range strings.Split(html, "\n") {
		if line == "" {
			continue
		}
		n, err := l.norm.Normalize(line)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// --- cache ---

type memCache struct {
	mu    sync.Mutex
	pages map[string]domain.CachedPage
}

func newMemCache() *memCache {
	return &memCache{pages: map[string]domain.CachedPage{}}
}

func (c *memCache) Get(_ context.Context, url string) (domain.CachedPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[url]
	if !ok {
		return domain.CachedPage{}, domain.ErrCacheMiss
	}
	return p, nil
}

func (c *memCache) Set(_ context.Context, url, html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[url] = domain.CachedPage{URL: url, HTML: html, FetchedAt: time.Now()}
	return nil
}

func (c *memCache) ListKeys(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.pages))
	for k := range c.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *memCache) has(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pages[wikiBase+path]
	return ok
}

// --- helpers ---

func newNormalizer(t *testing.T) *urlnorm.Normalizer {
	t.Helper()
	n, err := urlnorm.New(wikiBase, urlnorm.WithExcluded("/file:", "/Special:"))
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	return n
}

func newTestService(t *testing.T, f *fakeFetcher, c *memCache, workers int) *Service {
	t.Helper()
	n := newNormalizer(t)
	return New(f, lineLinks{norm: n}, c, n, Config{
		Workers:           workers,
		RequestsPerSecond: 10000,
		Burst:             1000,
		FetchTimeout:      2 * time.Second,
		ProgressBuffer:    256,
	}, zap.NewNop())
}

func u(path string) string { return wikiBase + path }
