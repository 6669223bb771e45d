package embcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
)

const testDims = 3

// mockEmbedder returns a vector derived from the text length.
type mockEmbedder struct {
	mu     sync.Mutex
	calls  int
	texts  []string
	dims   int
	err    error
	closed bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	dims := m.dims
	if dims == 0 {
		dims = testDims
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return domain.EmbeddingResult{Embedding: vec, TotalTokens: len(text)}, nil
}

func (m *mockEmbedder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingLoader counts how many times initialization ran.
type countingLoader struct {
	loads atomic.Int32
	emb   domain.Embedder
}

func (l *countingLoader) Load(context.Context) (domain.Embedder, error) {
	l.loads.Add(1)
	return l.emb, nil
}

func newTestCache(t *testing.T, inner *mockEmbedder, cfg Config) (*Cache, *fakeClock) {
	t.Helper()
	if cfg.Dimensions == 0 {
		cfg.Dimensions = testDims
	}
	clock := newFakeClock()
	c := New(Static(inner), cfg, nil, zap.NewNop(), WithClock(clock.Now))
	return c, clock
}
