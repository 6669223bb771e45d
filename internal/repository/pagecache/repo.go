// Package pagecache persists fetched page bodies keyed by normalized URL.
package pagecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nooikko/nightreign-query/internal/db"
	"github.com/nooikko/nightreign-query/internal/domain"
)

// KeyPrefix namespaces page records in the backing store.
const KeyPrefix = domain.KeyPrefix + "page:"

// store is the consumer interface for page persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// normalizer canonicalizes URLs before they become keys.
type normalizer interface {
	Normalize(raw string) (string, error)
}

// Repo is the content cache. It does not lock: Has followed by Set is not atomic.
type Repo struct {
	store store
	norm  normalizer
	now   func() time.Time
}

// New creates a page cache repository.
func New(s store, n normalizer) *Repo {
	return &Repo{store: s, norm: n, now: time.Now}
}

func (r *Repo) key(url string) (string, string, error) {
	u, err := r.norm.Normalize(url)
	if err != nil {
		return "", "", err
	}
	return KeyPrefix + u, u, nil
}

// Get returns the cached page or domain.ErrCacheMiss.
func (r *Repo) Get(ctx context.Context, url string) (domain.CachedPage, error) {
	key, norm, err := r.key(url)
	if err != nil {
		return domain.CachedPage{}, err
	}
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.CachedPage{}, fmt.Errorf("%s: %w", norm, domain.ErrCacheMiss)
		}
		return domain.CachedPage{}, fmt.Errorf("get page %s: %w", norm, err)
	}

	var page domain.CachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		return domain.CachedPage{}, fmt.Errorf("decode page %s: %w", norm, err)
	}
	if page.URL == "" {
		page.URL = norm
	}
	return page, nil
}

// Set stores html for url, replacing any previous record.
func (r *Repo) Set(ctx context.Context, url, html string) error {
	key, norm, err := r.key(url)
	if err != nil {
		return err
	}
	data, err := json.Marshal(domain.CachedPage{URL: norm, HTML: html, FetchedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode page %s: %w", norm, err)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set page %s: %w", norm, err)
	}
	return nil
}

// Has reports whether url is cached.
func (r *Repo) Has(ctx context.Context, url string) (bool, error) {
	key, norm, err := r.key(url)
	if err != nil {
		return false, err
	}
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists page %s: %w", norm, err)
	}
	return ok, nil
}

// Purge removes url from the cache.
func (r *Repo) Purge(ctx context.Context, url string) error {
	key, norm, err := r.key(url)
	if err != nil {
		return err
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("purge page %s: %w", norm, err)
	}
	return nil
}

// ListKeys enumerates every cached URL in sorted order. It walks the whole
// keyspace and is meant for crawl startup and offline analysis only.
func (r *Repo) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, KeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	urls := make([]string, 0, len(keys))
	for _, k := range keys {
		urls = append(urls, strings.TrimPrefix(k, KeyPrefix))
	}
	sort.Strings(urls)
	return urls, nil
}
