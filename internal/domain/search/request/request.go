package request

import (
	"fmt"
	"strings"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 100
	// CandidateFactor is how many candidates per returned result each
	// retrieval path is asked for before fusion.
	CandidateFactor = 2
)

// Request is a validated search query. A nil vector means lexical-only search.
type Request struct {
	query   string
	vector  []float32
	filters filter.Filters
	limit   int
}

// New validates and normalizes search parameters.
// A limit of zero or below selects DefaultLimit; limits above MaxLimit are clamped.
func New(query string, vector []float32, filters filter.Filters, limit int) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrEmptyQuery)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(vector) == 0 {
		vector = nil
	}

	return Request{
		query:   query,
		vector:  vector,
		filters: filters,
		limit:   limit,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Vector returns the query embedding, nil when absent.
func (r *Request) Vector() []float32 { return r.vector }

// HasVector reports whether the vector path can run.
func (r *Request) HasVector() bool { return r.vector != nil }

// Filters returns the category filter.
func (r *Request) Filters() filter.Filters { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// Candidates returns the number of results to request from each retrieval path.
func (r *Request) Candidates() int { return r.limit * CandidateFactor }
