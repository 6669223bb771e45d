// Package health reports whether the search index, page cache and
// embedding provider answer.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the overall verdict of a Report.
type Status string

// Overall statuses. Degraded means some but not all components failed.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the outcome for one component.
type CheckResult string

// Component outcomes.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentIndex     = "index"
	ComponentCache     = "cache"
	ComponentEmbedding = "embedding"
)

const defaultCheckTimeout = 3 * time.Second

// Report is the body of GET /health.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

type probe struct {
	name string
	fn   func(context.Context) error
}

// Service runs the configured probes.
type Service struct {
	probes  []probe
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a Service. cache and embedding are optional and left out of
// the report when nil.
func New(index, cache Pinger, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	s := &Service{
		probes:  []probe{{ComponentIndex, index.Ping}},
		timeout: defaultCheckTimeout,
		logger:  logger,
	}
	if cache != nil {
		s.probes = append(s.probes, probe{ComponentCache, cache.Ping})
	}
	if embedding != nil {
		s.probes = append(s.probes, probe{ComponentEmbedding, embedding.HealthCheck})
	}
	return s
}

// Check runs every probe concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		g      errgroup.Group
		checks = make(map[string]CheckResult, len(s.probes))
		failed int
	)
	for _, p := range s.probes {
		g.Go(func() error {
			res := s.probe(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			checks[p.name] = res
			if res == CheckError {
				failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	if failed == len(checks) {
		status = Unhealthy
	} else if failed > 0 {
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, p probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := p.fn(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.String("component", p.name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
