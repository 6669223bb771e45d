package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/domain/category"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	"github.com/nooikko/nightreign-query/internal/domain/search/request"
	"github.com/nooikko/nightreign-query/internal/domain/search/result"
	"github.com/nooikko/nightreign-query/internal/logger"
	healthuc "github.com/nooikko/nightreign-query/internal/usecase/health"
	searchuc "github.com/nooikko/nightreign-query/internal/usecase/search"
)

// ErrorCode is the machine-readable error kind of an ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeEmbeddingError   ErrorCode = "embedding_provider_error"
	CodeIndexUnavailable ErrorCode = "index_unavailable"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchResponse is the JSON body of GET /search.
type SearchResponse struct {
	Query string `json:"query"`
	searchuc.Response
}

// Searcher answers a natural-language query.
type Searcher interface {
	Query(ctx context.Context, text string, filters filter.Filters, limit int) (searchuc.Response, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search API.
type Server struct {
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(category.ErrUnknownCategory, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingError),
		sentinelHandler(domain.ErrIndexQueryFailure, http.StatusServiceUnavailable, CodeIndexUnavailable),
	}
	return s
}

// Search handles GET /search?q=&type=&limit=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := strings.TrimSpace(params.Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query parameter q is required")
		return
	}
	if len(q) > request.MaxQueryLength {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query too long")
		return
	}

	filters, err := filter.Parse(splitList(params["type"])...)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	limit := 0
	if raw := params.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be an integer")
			return
		}
	}

	resp, err := s.search.Query(r.Context(), q, filters, limit)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	if resp.Results == nil {
		resp.Results = []result.Scored{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Response: resp})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// splitList flattens repeated and comma-separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		category.ErrUnknownCategory,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexQueryFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContextOr(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
