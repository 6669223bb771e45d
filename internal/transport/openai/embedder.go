package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/metrics"
)

// Embedder calls an OpenAI-compatible /embeddings endpoint: OpenAI itself or
// a local server such as Ollama, LM Studio or text-embeddings-inference.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string
	// Dimensions requests shortened vectors from models that support it.
	// Zero leaves the model default.
	Dimensions int
	Provider   string
	// Timeout bounds one HTTP round trip. Zero means no client-side limit.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding client.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   provider,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vectors, usage, err := e.call(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    vectors[0],
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder in one API call. Splitting large
// inputs is left to the caller.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	vectors, usage, err := e.call(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", classify(err))
	}
	return nil
}

// call returns one vector per input, in input order.
func (e *Embedder) call(ctx context.Context, input []string) ([][]float32, openai.Usage, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.dimensions,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	e.observeLatency(time.Since(start), len(input))

	if err != nil {
		err = classify(err)
		reason := "api_error"
		if errors.Is(err, domain.ErrRateLimited) {
			reason = "rate_limited"
		}
		e.fail(reason)
		e.logger.Warn("Embedding request failed",
			zap.String("provider", e.provider),
			zap.String("model", string(e.model)),
			zap.Int("inputs", len(input)),
			zap.Error(err),
		)
		return nil, openai.Usage{}, err
	}

	if len(resp.Data) != len(input) {
		e.fail("count_mismatch")
		return nil, openai.Usage{}, fmt.Errorf("asked for %d embeddings, got %d: %w",
			len(input), len(resp.Data), domain.ErrEmbeddingProviderError)
	}

	// The API may answer out of order; Index ties each vector to its input.
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i := range data {
		vectors[i] = data[i].Embedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "ok").Inc()
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model)).Add(float64(resp.Usage.TotalTokens))
	}
	return vectors, resp.Usage, nil
}

func (e *Embedder) observeLatency(d time.Duration, inputs int) {
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(d.Seconds())
	metrics.EmbeddingBatchSize.WithLabelValues(e.provider, string(e.model)).Observe(float64(inputs))
}

func (e *Embedder) fail(reason string) {
	outcome := "error"
	if reason == "rate_limited" {
		outcome = reason
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), outcome).Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), reason).Inc()
}

// classify maps a go-openai error onto the domain sentinels: HTTP 429 is
// ErrRateLimited, everything else ErrEmbeddingProviderError. The provider's
// own message is kept for logs.
func classify(err error) error {
	status, message := 0, ""

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, message = reqErr.HTTPStatusCode, bodyMessage(reqErr.Body)
	}

	sentinel := domain.ErrEmbeddingProviderError
	if status == http.StatusTooManyRequests {
		sentinel = domain.ErrRateLimited
	}

	switch {
	case status == 0:
		return fmt.Errorf("embedding request: %w: %w", err, sentinel)
	case message == "":
		return fmt.Errorf("embedding API returned %d: %w", status, sentinel)
	default:
		return fmt.Errorf("embedding API returned %d: %s: %w", status, message, sentinel)
	}
}

// bodyMessage pulls a readable message out of a non-OpenAI error body:
// {"detail": "..."} from FastAPI servers or {"error": "..."} from Ollama.
func bodyMessage(body []byte) string {
	var parsed struct {
		Detail string          `json:"detail"`
		Error  json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return strings.TrimSpace(string(body))
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	var s string
	if json.Unmarshal(parsed.Error, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(body))
}
