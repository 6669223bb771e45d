package health

import "context"

// Pinger is satisfied by both storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker is satisfied by the instrumented embedder, which probes
// the provider's models endpoint.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
