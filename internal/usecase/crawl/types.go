package crawl

import "time"

// UnlimitedDepth disables the depth limit.
const UnlimitedDepth = -1

// Options describe a single crawl invocation.
type Options struct {
	Seeds []string
	// MaxDepth is the deepest level visited; seeds are depth 0.
	MaxDepth int
	// MaxPages caps processed pages (success or failure). 0 means unlimited.
	MaxPages int
	// Include, when set, must accept an URL for it to be visited.
	Include func(url string) bool
	// ProgressEvery emits a snapshot every N processed pages. 0 disables.
	ProgressEvery int
	Progress      ProgressSink
	// Rewalk ignores previously cached pages when seeding the visited set.
	// Cached HTML is still reused instead of fetching.
	Rewalk bool
}

// VisitedPage is a successfully processed page.
type VisitedPage struct {
	URL       string
	Depth     int
	FromCache bool
	Links     int
}

// PageError is a page that could not be processed. Err wraps domain.ErrFetchFailure.
type PageError struct {
	URL   string
	Depth int
	Err   error
}

// Stats summarize a crawl.
type Stats struct {
	TotalPages      int
	Succeeded       int
	Failed          int
	Fetched         int
	FromCache       int
	Discovered      int
	Skipped         int
	EnqueuedByDepth map[int]int
	MaxDepth        int
	Duration        time.Duration
}

// Result is the outcome of a crawl. It is returned even when the crawl was cancelled.
type Result struct {
	Visited         []VisitedPage
	Errors          []PageError
	Depths          map[string]int
	Stats           Stats
	Cancelled       bool
	BudgetExhausted bool
}
