package metrics

import "github.com/prometheus/client_golang/prometheus"

// Crawler Prometheus metrics.
var (
	CrawlPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_pages_total",
			Help:      "Crawled pages by outcome",
		},
		[]string{"result"}, // "fetched" / "cached" / "failed"
	)

	CrawlFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_fetch_duration_seconds",
			Help:      "Network fetch duration in seconds, rate limiter wait excluded",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	CrawlFrontierSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crawl_frontier_size",
			Help:      "URLs waiting in the crawl frontier",
		},
	)
)
