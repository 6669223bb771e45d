package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers the API, embedding, crawl and search metrics with the
// default registry. Must be called from main; repeated calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			APIRequestsTotal,
			APIRequestDuration,
			APIRequestsInFlight,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			CrawlPagesTotal,
			CrawlFetchDuration,
			CrawlFrontierSize,
			SearchRequestsTotal,
			SearchDuration,
			IndexQueryErrorsTotal,
		)
	})
}
