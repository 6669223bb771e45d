package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/config"
	"github.com/nooikko/nightreign-query/internal/db"
	dbBadger "github.com/nooikko/nightreign-query/internal/db/badger"
	dbRedis "github.com/nooikko/nightreign-query/internal/db/redis"
	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/metrics"
	"github.com/nooikko/nightreign-query/internal/parser"
	chunkrepo "github.com/nooikko/nightreign-query/internal/repository/chunk"
	"github.com/nooikko/nightreign-query/internal/repository/embcache"
	"github.com/nooikko/nightreign-query/internal/repository/pagecache"
	searchrepo "github.com/nooikko/nightreign-query/internal/repository/search"
	"github.com/nooikko/nightreign-query/internal/transport/httpfetch"
	openaiEmb "github.com/nooikko/nightreign-query/internal/transport/openai"
	"github.com/nooikko/nightreign-query/internal/urlnorm"
	"github.com/nooikko/nightreign-query/internal/usecase/crawl"
	embeddinguc "github.com/nooikko/nightreign-query/internal/usecase/embedding"
	"github.com/nooikko/nightreign-query/internal/usecase/ingest"
	searchuc "github.com/nooikko/nightreign-query/internal/usecase/search"
)

// cacheStore is the content cache backend: Badger on disk or the Redis store.
type cacheStore interface {
	db.KVStore
	db.Pinger
}

// app is the composition root. Dependencies are built on first use so each
// command only connects to what it needs.
type app struct {
	env     string
	cfg     config.Config
	logger  *zap.Logger
	closers []func()

	norm       *urlnorm.Normalizer
	redis      *dbRedis.Store
	cacheStore cacheStore
	pages      *pagecache.Repo
	embedder   *embeddinguc.InstrumentedEmbedder
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) normalizer() (*urlnorm.Normalizer, error) {
	if a.norm != nil {
		return a.norm, nil
	}
	n, err := urlnorm.New(a.cfg.Site.BaseURL,
		urlnorm.WithScope(a.cfg.Site.Scope...),
		urlnorm.WithExcluded(a.cfg.Site.Excluded...),
	)
	if err != nil {
		return nil, fmt.Errorf("site.base_url: %w", err)
	}
	a.norm = n
	return n, nil
}

func (a *app) redisStore(ctx context.Context) (*dbRedis.Store, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    a.cfg.Database.Addrs,
		Username: a.cfg.Database.Username,
		Password: a.cfg.Database.Password,
		DB:       a.cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	timeout := time.Duration(a.cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	a.logger.Info("Connected to redis", zap.Strings("addrs", a.cfg.Database.Addrs))
	a.redis = store
	return store, nil
}

func (a *app) contentStore(ctx context.Context) (cacheStore, error) {
	if a.cacheStore != nil {
		return a.cacheStore, nil
	}
	switch a.cfg.Cache.Driver {
	case config.CacheDriverRedis:
		store, err := a.redisStore(ctx)
		if err != nil {
			return nil, err
		}
		a.cacheStore = store
	default:
		store, err := dbBadger.Open(dbBadger.Config{
			Path:     a.cfg.Cache.Path,
			InMemory: a.cfg.Cache.InMemory,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open content cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("Failed to close content cache", zap.Error(err))
			}
		})
		a.logger.Debug("Opened content cache", zap.String("path", a.cfg.Cache.Path))
		a.cacheStore = store
	}
	return a.cacheStore, nil
}

func (a *app) pageCache(ctx context.Context) (*pagecache.Repo, error) {
	if a.pages != nil {
		return a.pages, nil
	}
	norm, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	store, err := a.contentStore(ctx)
	if err != nil {
		return nil, err
	}
	a.pages = pagecache.New(store, norm)
	return a.pages, nil
}

func (a *app) crawler(ctx context.Context) (*crawl.Service, error) {
	norm, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	pages, err := a.pageCache(ctx)
	if err != nil {
		return nil, err
	}

	c := a.cfg.Crawler
	fetcher := httpfetch.New(httpfetch.Config{
		UserAgent: c.UserAgent,
		Timeout:   time.Duration(c.FetchTimeoutSec) * time.Second,
		MaxBytes:  c.MaxBodyBytes,
		Logger:    a.logger,
	})

	return crawl.New(fetcher, parser.NewLinkExtractor(norm), pages, norm, crawl.Config{
		Workers:           c.Workers,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		FetchTimeout:      time.Duration(c.FetchTimeoutSec) * time.Second,
	}, a.logger), nil
}

// instrumentedEmbedder assembles OpenAI -> Instrumented. Transport metrics are
// recorded by the OpenAI client.
func (a *app) instrumentedEmbedder() (*embeddinguc.InstrumentedEmbedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	e := a.cfg.Embedding
	if e.APIKey == "" {
		return nil, fmt.Errorf("%w: embedding.api_key is not set", domain.ErrEmbeddingUnavailable)
	}
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Model:      e.Model,
		Dimensions: e.Dimensions,
		Provider:   e.Provider,
		Timeout:    time.Duration(e.TimeoutSec) * time.Second,
		Logger:     a.logger,
	})
	a.embedder = embeddinguc.NewInstrumentedEmbedder(base, e.Provider, e.Model, e.Dimensions, a.logger).
		WithMaxBatch(e.MaxBatch)
	return a.embedder, nil
}

// documentEmbedder is used by ingestion. Instruction prefix is outermost.
func (a *app) documentEmbedder() (domain.Embedder, error) {
	inner, err := a.instrumentedEmbedder()
	if err != nil {
		return nil, err
	}
	if instr := a.cfg.Embedding.DocumentInstruction; instr != "" {
		return domain.NewInstructionEmbedder(inner, instr), nil
	}
	return inner, nil
}

// queryCache wraps the query embedder in the TTL + LRU cache. The embedder is
// built lazily by the cache, so a missing API key only disables the vector path.
func (a *app) queryCache() *embcache.Cache {
	e := a.cfg.Embedding
	load := func(context.Context) (domain.Embedder, error) {
		inner, err := a.instrumentedEmbedder()
		if err != nil {
			return nil, err
		}
		if e.QueryInstruction != "" {
			return domain.NewInstructionEmbedder(inner, e.QueryInstruction), nil
		}
		return inner, nil
	}
	cache := embcache.New(load, embcache.Config{
		TTL:        time.Duration(e.CacheTTLSec) * time.Second,
		Capacity:   e.CacheCapacity,
		Dimensions: e.Dimensions,
		Timeout:    time.Duration(e.TimeoutSec) * time.Second,
	}, metrics.EmbeddingCacheTotal, a.logger)

	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down embedding cache", zap.Error(err))
		}
	})
	return cache
}

func (a *app) chunkRepo(ctx context.Context) (*chunkrepo.Repo, error) {
	store, err := a.redisStore(ctx)
	if err != nil {
		return nil, err
	}
	return chunkrepo.New(store, a.cfg.Embedding.Dimensions).WithHNSW(chunkrepo.HNSWConfig{
		M:           a.cfg.Index.HNSWM,
		EFConstruct: a.cfg.Index.HNSWEFConstruct,
	}), nil
}

func (a *app) searchService(ctx context.Context) (*searchuc.Service, error) {
	store, err := a.redisStore(ctx)
	if err != nil {
		return nil, err
	}
	s := a.cfg.Search
	engine := searchuc.NewEngine(searchrepo.New(store), searchuc.Config{
		Weights: searchuc.Weights{
			Lexical:    s.LexicalWeight,
			Vector:     s.VectorWeight,
			SingleList: s.SingleListWeight,
		},
		IndexTimeout: time.Duration(s.IndexTimeoutMs) * time.Millisecond,
	}, a.logger)
	return searchuc.NewService(engine, a.queryCache(), a.logger), nil
}

func (a *app) ingester(ctx context.Context) (*ingest.Service, error) {
	pages, err := a.pageCache(ctx)
	if err != nil {
		return nil, err
	}
	writer, err := a.chunkRepo(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := a.documentEmbedder()
	if err != nil {
		return nil, err
	}
	rules, err := a.cfg.Ingest.CategoryRules()
	if err != nil {
		return nil, err
	}
	return ingest.New(pages, writer, embedder, ingest.NewClassifier(ingest.RulesFromMap(rules)), ingest.Config{
		ChunkSize: a.cfg.Ingest.ChunkSize,
		BatchSize: a.cfg.Ingest.BatchSize,
	}, a.logger), nil
}
