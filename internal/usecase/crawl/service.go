package crawl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/metrics"
)

// Config holds crawler tuning. Zero values fall back to defaults.
type Config struct {
	Workers           int
	RequestsPerSecond float64
	Burst             int
	FetchTimeout      time.Duration
	ProgressBuffer    int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.ProgressBuffer <= 0 {
		c.ProgressBuffer = 8
	}
	return c
}

// Service walks the wiki link graph breadth-first, visiting every page at most once.
type Service struct {
	fetcher Fetcher
	links   LinkExtractor
	cache   PageCache
	norm    Normalizer
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New creates a crawl service. The rate limiter is shared by every crawl run on the service.
func New(
	fetcher Fetcher, links LinkExtractor, cache PageCache, norm Normalizer,
	cfg Config, logger *zap.Logger,
) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher: fetcher,
		links:   links,
		cache:   cache,
		norm:    norm,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cfg:     cfg,
		logger:  logger,
	}
}

type item struct {
	url   string
	depth int
}

type outcome struct {
	item
	fromCache bool
	links     []string
	err       error
}

// Crawl runs a breadth-first crawl from opts.Seeds.
// Pages already in the cache count as visited unless opts.Rewalk is set.
// A cancelled context stops new pages from starting; the partial result is
// returned with Cancelled set and a nil error.
func (s *Service) Crawl(ctx context.Context, opts Options) (*Result, error) {
	visited := make(map[string]struct{})
	if !opts.Rewalk {
		keys, err := s.cache.ListKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("list cached pages: %w", err)
		}
		for _, k := range keys {
			visited[k] = struct{}{}
		}
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	r := &run{
		svc:        s,
		opts:       opts,
		pool:       pool,
		visited:    visited,
		discovered: make(map[string]struct{}, len(visited)),
		results:    make(chan outcome, s.cfg.Workers),
		fetchCtx:   context.WithoutCancel(ctx),
		start:      time.Now(),
		res: &Result{
			Depths: make(map[string]int),
			Stats:  Stats{EnqueuedByDepth: make(map[int]int)},
		},
	}
	for k := range visited {
		r.discovered[k] = struct{}{}
	}

	s.logger.Info("crawl started",
		zap.Int("seeds", len(opts.Seeds)),
		zap.Int("already_visited", len(visited)),
		zap.Int("max_depth", opts.MaxDepth),
		zap.Int("max_pages", opts.MaxPages),
		zap.Bool("rewalk", opts.Rewalk),
	)

	for _, seed := range opts.Seeds {
		norm, err := s.norm.Normalize(seed)
		if err != nil {
			s.logger.Warn("skipping invalid seed", zap.String("seed", seed), zap.Error(err))
			continue
		}
		r.enqueue(item{url: norm, depth: 0})
	}

	progress := startProgress(opts.Progress, s.cfg.ProgressBuffer)
	r.progress = progress
	r.loop(ctx)
	if dropped := progress.close(); dropped > 0 {
		s.logger.Debug("progress snapshots dropped", zap.Int("count", dropped))
	}
	metrics.CrawlFrontierSize.Set(0)

	res := r.res
	res.Stats.Duration = time.Since(r.start)
	res.Stats.TotalPages = res.Stats.Succeeded + res.Stats.Failed

	s.logger.Info("crawl finished",
		zap.Int("total_pages", res.Stats.TotalPages),
		zap.Int("succeeded", res.Stats.Succeeded),
		zap.Int("failed", res.Stats.Failed),
		zap.Int("fetched", res.Stats.Fetched),
		zap.Int("from_cache", res.Stats.FromCache),
		zap.Int("discovered", res.Stats.Discovered),
		zap.Bool("cancelled", res.Cancelled),
		zap.Bool("budget_exhausted", res.BudgetExhausted),
		zap.Duration("duration", res.Stats.Duration),
	)
	return res, nil
}

// CrawlFromCache finds in-scope links of cached pages that are not cached
// themselves and crawls exactly those as depth-0 seeds. Link discovery makes
// no network calls. opts.Seeds is ignored.
func (s *Service) CrawlFromCache(ctx context.Context, opts Options) (*Result, error) {
	keys, err := s.cache.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached pages: %w", err)
	}
	cached := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		cached[k] = struct{}{}
	}

	missing := make(map[string]struct{})
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.cache.Get(ctx, k)
		if err != nil {
			s.logger.Warn("read cached page", zap.String("url", k), zap.Error(err))
			continue
		}
		for _, link := range s.links.ExtractLinks(page.HTML, k) {
			if _, ok := cached[link]; ok {
				continue
			}
			if s.norm.IsInScope(link) {
				missing[link] = struct{}{}
			}
		}
	}

	seeds := make([]string, 0, len(missing))
	for link := range missing {
		seeds = append(seeds, link)
	}
	sort.Strings(seeds)

	s.logger.Info("uncached links found in cache",
		zap.Int("cached_pages", len(keys)),
		zap.Int("missing", len(seeds)),
	)

	opts.Seeds = seeds
	opts.Rewalk = false
	return s.Crawl(ctx, opts)
}

// run is the state of one crawl. Only the scheduling goroutine touches it.
type run struct {
	svc      *Service
	opts     Options
	pool     *ants.Pool
	progress *progressPump

	visited    map[string]struct{}
	discovered map[string]struct{}
	frontier   []item
	head       int

	inflight     int
	currentDepth int
	results      chan outcome

	// fetchCtx carries the caller's values but not its cancellation.
	fetchCtx context.Context

	start time.Time
	res   *Result
}

func (r *run) enqueue(it item) {
	if _, ok := r.discovered[it.url]; ok {
		return
	}
	r.discovered[it.url] = struct{}{}
	r.frontier = append(r.frontier, it)
	r.res.Stats.Discovered++
	r.res.Stats.EnqueuedByDepth[it.depth]++
}

func (r *run) queued() int { return len(r.frontier) - r.head }

func (r *run) processed() int { return r.res.Stats.Succeeded + r.res.Stats.Failed }

func (r *run) depthAllowed(depth int) bool {
	return r.opts.MaxDepth == UnlimitedDepth || depth <= r.opts.MaxDepth
}

func (r *run) loop(ctx context.Context) {
	done := ctx.Done()
	for {
		if ctx.Err() != nil {
			r.res.Cancelled = true
		}
		r.dispatch()
		metrics.CrawlFrontierSize.Set(float64(r.queued()))

		if r.inflight == 0 {
			return
		}

		select {
		case out := <-r.results:
			r.inflight--
			r.record(out)
		case <-done:
			r.res.Cancelled = true
			done = nil
		}
	}
}

// dispatch starts pages until the pool is full, the frontier is empty, or the
// next page is one level deeper than pages still in flight. Frontier entries
// that would be skipped anyway never count against MaxPages.
func (r *run) dispatch() {
	for !r.res.Cancelled && r.inflight < r.svc.cfg.Workers && r.head < len(r.frontier) {
		next := r.frontier[r.head]
		if r.inflight > 0 && next.depth > r.currentDepth {
			return
		}
		if r.skip(next) {
			r.head++
			r.res.Stats.Skipped++
			continue
		}
		if r.opts.MaxPages > 0 && r.processed()+r.inflight >= r.opts.MaxPages {
			r.res.BudgetExhausted = true
			return
		}
		r.head++

		r.visited[next.url] = struct{}{}
		r.currentDepth = next.depth
		r.inflight++
		r.submit(next)
	}
}

// skip reports whether it was already visited or falls outside the depth
// limit or Include predicate.
func (r *run) skip(it item) bool {
	if _, ok := r.visited[it.url]; ok {
		return true
	}
	if !r.depthAllowed(it.depth) {
		return true
	}
	return r.opts.Include != nil && !r.opts.Include(it.url)
}

func (r *run) submit(it item) {
	task := func() {
		out := outcome{item: it}
		defer func() {
			if p := recover(); p != nil {
				out.err = fmt.Errorf("%w: panic: %v", domain.ErrFetchFailure, p)
			}
			r.results <- out
		}()
		out.fromCache, out.links, out.err = r.svc.visit(r.fetchCtx, it)
	}
	if err := r.pool.Submit(task); err != nil {
		r.inflight--
		r.record(outcome{item: it, err: fmt.Errorf("%w: %w", domain.ErrFetchFailure, err)})
	}
}

func (r *run) record(out outcome) {
	stats := &r.res.Stats
	if out.err != nil {
		stats.Failed++
		r.res.Errors = append(r.res.Errors, PageError{URL: out.url, Depth: out.depth, Err: out.err})
		metrics.CrawlPagesTotal.WithLabelValues("failed").Inc()
		r.svc.logger.Warn("page failed",
			zap.String("url", out.url),
			zap.Int("depth", out.depth),
			zap.Error(out.err),
		)
	} else {
		stats.Succeeded++
		if out.fromCache {
			stats.FromCache++
			metrics.CrawlPagesTotal.WithLabelValues("cached").Inc()
		} else {
			stats.Fetched++
			metrics.CrawlPagesTotal.WithLabelValues("fetched").Inc()
		}
		r.res.Visited = append(r.res.Visited, VisitedPage{
			URL: out.url, Depth: out.depth, FromCache: out.fromCache, Links: len(out.links),
		})

		childDepth := out.depth + 1
		if r.depthAllowed(childDepth) {
			for _, link := range out.links {
				if r.svc.norm.IsInScope(link) {
					r.enqueue(item{url: link, depth: childDepth})
				}
			}
		}
	}

	r.res.Depths[out.url] = out.depth
	if out.depth > stats.MaxDepth {
		stats.MaxDepth = out.depth
	}

	if n := r.opts.ProgressEvery; n > 0 && r.processed()%n == 0 {
		r.progress.emit(r.snapshot())
	}
}

func (r *run) snapshot() Progress {
	elapsed := time.Since(r.start)
	p := Progress{
		Discovered:   len(r.discovered),
		Visited:      r.processed(),
		Queued:       r.queued(),
		CurrentDepth: r.currentDepth,
		Fetched:      r.res.Stats.Fetched,
		FromCache:    r.res.Stats.FromCache,
		Errors:       r.res.Stats.Failed,
		Elapsed:      elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.PagesPerSecond = float64(p.Visited) / secs
	}
	return p
}

// visit loads a page from the cache or the network and extracts its links.
// Each visit is bounded by the fetch timeout.
func (s *Service) visit(ctx context.Context, it item) (bool, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	html, fromCache, err := s.load(ctx, it.url)
	if err != nil {
		return false, nil, err
	}
	return fromCache, s.links.ExtractLinks(html, it.url), nil
}

func (s *Service) load(ctx context.Context, url string) (string, bool, error) {
	page, err := s.cache.Get(ctx, url)
	if err == nil {
		return page.HTML, true, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("page cache read failed, fetching", zap.String("url", url), zap.Error(err))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("%w: rate limiter: %w", domain.ErrFetchFailure, err)
	}

	start := time.Now()
	res, err := s.fetcher.Fetch(ctx, url)
	metrics.CrawlFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrFetchFailure) {
			return "", false, err
		}
		return "", false, fmt.Errorf("%w: %w", domain.ErrFetchFailure, err)
	}

	if err := s.cache.Set(ctx, url, res.HTML); err != nil {
		s.logger.Warn("page cache write failed", zap.String("url", url), zap.Error(err))
	}
	return res.HTML, false, nil
}
