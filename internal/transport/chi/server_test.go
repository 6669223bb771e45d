package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/domain/category"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	"github.com/nooikko/nightreign-query/internal/domain/search/mode"
	"github.com/nooikko/nightreign-query/internal/domain/search/result"
	healthuc "github.com/nooikko/nightreign-query/internal/usecase/health"
	searchuc "github.com/nooikko/nightreign-query/internal/usecase/search"
)

// --- Mocks ---

type mockSearcher struct {
	resp    searchuc.Response
	err     error
	panics  bool
	text    string
	filters filter.Filters
	limit   int
	calls   int
}

func (m *mockSearcher) Query(_ context.Context, text string, f filter.Filters, limit int) (searchuc.Response, error) {
	if m.panics {
		panic("boom")
	}
	m.calls++
	m.text = text
	m.filters = f
	m.limit = limit
	return m.resp, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(s *mockSearcher, h *mockHealth, keys ...string) http.Handler {
	if h == nil {
		h = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	return NewRouter(NewServer(s, h, zap.NewNop()), keys, zap.NewNop())
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Tests ---

func TestSearch_OK(t *testing.T) {
	fused := 0.8
	s := &mockSearcher{resp: searchuc.Response{
		Mode: mode.Hybrid,
		Results: []result.Scored{{
			ID:          "c1",
			URL:         "https://nightreign.wiki.fextralife.com/Gladius",
			Title:       "Gladius",
			Category:    category.Boss,
			Content:     "Gladius, Beast of Night",
			VectorScore: &fused,
			FusedScore:  0.8,
		}},
	}}
	rr := do(t, newTestRouter(s, nil), "/search?q=gladius+weakness&type=boss&limit=5")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var body SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Query != "gladius weakness" {
		t.Errorf("query = %q", body.Query)
	}
	if body.Mode != mode.Hybrid {
		t.Errorf("mode = %q", body.Mode)
	}
	if len(body.Results) != 1 || body.Results[0].ID != "c1" {
		t.Fatalf("results = %+v", body.Results)
	}
	if body.Results[0].LexicalScore != nil {
		t.Error("lexical score should be omitted")
	}

	if s.text != "gladius weakness" || s.limit != 5 {
		t.Errorf("searcher got text=%q limit=%d", s.text, s.limit)
	}
	if !s.filters.Matches(category.Boss) || s.filters.Matches(category.Weapon) {
		t.Errorf("filters = %v", s.filters.Types())
	}
}

func TestSearch_EmptyResultsEncodeAsArray(t *testing.T) {
	s := &mockSearcher{resp: searchuc.Response{Mode: mode.Fulltext}}
	rr := do(t, newTestRouter(s, nil), "/search?q=nothing")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"results":[]`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestSearch_MultipleTypes(t *testing.T) {
	s := &mockSearcher{}
	rr := do(t, newTestRouter(s, nil), "/search?q=x&type=weapons,talisman&type=spell")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	for _, c := range []category.Category{category.Weapon, category.Talisman, category.Spell} {
		if !s.filters.Matches(c) {
			t.Errorf("filter should match %s", c)
		}
	}
	if s.filters.Matches(category.Boss) {
		t.Error("filter should not match boss")
	}
}

func TestSearch_NoLimitPassesZero(t *testing.T) {
	s := &mockSearcher{}
	do(t, newTestRouter(s, nil), "/search?q=x")
	if s.limit != 0 {
		t.Errorf("limit = %d, want 0", s.limit)
	}
}

func TestSearch_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   ErrorCode
	}{
		{"missing q", "/search", CodeValidationFailed},
		{"blank q", "/search?q=%20%20", CodeValidationFailed},
		{"unknown type", "/search?q=x&type=dragons", CodeValidationFailed},
		{"bad limit", "/search?q=x&limit=ten", CodeBadRequest},
		{"too long", "/search?q=" + strings.Repeat("a", 5000), CodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockSearcher{}
			rr := do(t, newTestRouter(s, nil), tt.target)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if e := decodeError(t, rr); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
			if s.calls != 0 {
				t.Error("searcher should not be called")
			}
		})
	}
}

func TestSearch_DomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{fmt.Errorf("wrap: %w", domain.ErrIndexQueryFailure), http.StatusServiceUnavailable, CodeIndexUnavailable},
		{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingError},
		{domain.ErrEmptyQuery, http.StatusBadRequest, CodeValidationFailed},
		{errors.New("redis: secret internals"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			s := &mockSearcher{err: tt.err}
			rr := do(t, newTestRouter(s, nil), "/search?q=x")

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
			if strings.Contains(e.Message, "secret") {
				t.Errorf("internal error leaked: %q", e.Message)
			}
		})
	}
}

func TestSearch_RequiresAuth(t *testing.T) {
	s := &mockSearcher{}
	h := newTestRouter(s, nil, "secret")

	rr := do(t, h, "/search?q=x")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/search?q=x", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestSearch_PanicRecovered(t *testing.T) {
	s := &mockSearcher{panics: true}
	rr := do(t, newTestRouter(s, nil), "/search?q=x")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeInternalError {
		t.Errorf("code = %q", e.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := &mockHealth{report: healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentIndex: healthuc.CheckOK},
			}}
			rr := do(t, newTestRouter(&mockSearcher{}, h, "secret"), "/health")

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			var body healthuc.Report
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.status {
				t.Errorf("status = %q", body.Status)
			}
			if body.Checks[healthuc.ComponentIndex] != healthuc.CheckOK {
				t.Errorf("checks = %v", body.Checks)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(t, newTestRouter(&mockSearcher{}, nil, "secret"), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected default go collector output")
	}
}

func TestNotFound(t *testing.T) {
	rr := do(t, newTestRouter(&mockSearcher{}, nil), "/collections")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"boss, weapon", "", " ,spell"})
	want := []string{"boss", "weapon", "spell"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("splitList = %v, want %v", got, want)
	}
}
