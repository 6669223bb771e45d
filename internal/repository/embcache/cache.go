// Package embcache keeps recently computed query embeddings in process memory.
package embcache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
)

// Defaults for Config fields left at zero.
const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 100
	DefaultTimeout  = 10 * time.Second
)

// Config controls cache expiry, size and the embedding contract.
type Config struct {
	TTL        time.Duration
	Capacity   int
	Dimensions int
	// Timeout bounds each call to the embedding collaborator.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Dimensions <= 0 {
		c.Dimensions = domain.DefaultVectorConfig().Dimensions
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Loader builds the embedding collaborator. It runs at most once per
// successful initialization.
type Loader func(ctx context.Context) (domain.Embedder, error)

// Static returns a Loader for an already constructed embedder.
func Static(e domain.Embedder) Loader {
	return func(context.Context) (domain.Embedder, error) { return e, nil }
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

type entry struct {
	key      string
	vector   []float32
	cachedAt time.Time
}

// initFuture is the shared result of one initialization attempt.
type initFuture struct {
	done     chan struct{}
	embedder domain.Embedder
	err      error
}

// Cache is a TTL + LRU cache of query embeddings in front of a lazily
// initialized embedder. It is safe for concurrent use; the lock is never held
// while the embedder runs.
type Cache struct {
	load       Loader
	cfg        Config
	now        func() time.Time
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	initMu sync.Mutex
	init   *initFuture

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
}

// New creates an embedding cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"expired"), may be nil.
func New(
	load Loader,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
	opts ...Option,
) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		load:       load,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		cacheTotal: cacheTotal,
		logger:     logger,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize loads the embedder once. Concurrent callers wait for the same
// attempt; a failed attempt is reported to all of them and the next call retries.
func (c *Cache) Initialize(ctx context.Context) error {
	_, err := c.ensure(ctx)
	return err
}

func (c *Cache) ensure(ctx context.Context) (domain.Embedder, error) {
	c.initMu.Lock()
	f := c.init
	if f == nil {
		f = &initFuture{done: make(chan struct{})}
		c.init = f
		// the attempt outlives a caller that stops waiting
		go c.runInit(context.WithoutCancel(ctx), f)
	}
	c.initMu.Unlock()

	select {
	case <-f.done:
		return f.embedder, f.err
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for embedder: %w", ctx.Err())
	}
}

func (c *Cache) runInit(ctx context.Context, f *initFuture) {
	emb, err := c.load(ctx)
	if err == nil && emb == nil {
		err = errors.New("loader returned no embedder")
	}
	if err != nil {
		f.err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		c.initMu.Lock()
		if c.init == f {
			c.init = nil
		}
		c.initMu.Unlock()
		c.logger.Error("embedder initialization failed", zap.Error(err))
	} else {
		f.embedder = emb
		c.logger.Debug("embedder initialized")
	}
	close(f.done)
}

// Embed returns the vector for text, from cache when a fresh entry exists.
// Keys are case- and surrounding-whitespace-insensitive, and the normalized
// key is what gets embedded.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := normalizeKey(text)
	if key == "" {
		return nil, fmt.Errorf("embed: %w", domain.ErrEmptyQuery)
	}

	if vec, ok := c.lookup(key); ok {
		c.incCache("hit")
		return vec, nil
	}
	c.incCache("miss")

	emb, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	ectx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	res, err := emb.Embed(ectx, key)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(res.Embedding) != c.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d",
			domain.ErrEmbeddingDimensionMismatch, len(res.Embedding), c.cfg.Dimensions)
	}

	c.put(key, res.Embedding)
	return slices.Clone(res.Embedding), nil
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the number of cached entries, expired ones included until touched.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Shutdown clears the cache and releases the embedder. A later Embed
// initializes again.
func (c *Cache) Shutdown(ctx context.Context) error {
	c.Clear()

	c.initMu.Lock()
	f := c.init
	c.init = nil
	c.initMu.Unlock()
	if f == nil {
		return nil
	}

	select {
	case <-f.done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown embedder: %w", ctx.Err())
	}
	if closer, ok := f.embedder.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close embedder: %w", err)
		}
	}
	return nil
}

func (c *Cache) lookup(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.cachedAt) > c.cfg.TTL {
		c.order.Remove(el)
		delete(c.entries, key)
		c.incCache("expired")
		return nil, false
	}
	c.order.MoveToFront(el)
	return slices.Clone(e.vector), true
}

func (c *Cache) put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := slices.Clone(vec)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.vector = stored
		e.cachedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, vector: stored, cachedAt: c.now()})
	for c.order.Len() > c.cfg.Capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func normalizeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
