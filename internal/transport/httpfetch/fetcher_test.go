package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooikko/nightreign-query/internal/domain"
)

func TestFetch_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Gladius</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent"})
	res, err := f.Fetch(context.Background(), srv.URL+"/Bosses")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.HTML, "Gladius")
	assert.False(t, res.Cached)
	assert.Equal(t, "test-agent", gotUA)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailure)

	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestFetch_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50})
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL+"/icon.png")
	assert.ErrorIs(t, err, domain.ErrFetchFailure)
}

func TestFetch_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("a", 64)))
	}))
	defer srv.Close()

	_, err := New(Config{MaxBytes: 16}).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, domain.ErrFetchFailure)
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, domain.ErrFetchFailure)
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := New(Config{}).Fetch(context.Background(), "://bad")
	assert.ErrorIs(t, err, domain.ErrFetchFailure)
}

func TestIsHTML(t *testing.T) {
	assert.True(t, isHTML("text/html"))
	assert.True(t, isHTML("text/html; charset=UTF-8"))
	assert.True(t, isHTML("application/xhtml+xml"))
	assert.False(t, isHTML("application/json"))
}
