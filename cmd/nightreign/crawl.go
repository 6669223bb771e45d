package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nooikko/nightreign-query/internal/usecase/crawl"
)

type crawlFlags struct {
	maxDepth int
	maxPages int
	include  []string
	rewalk   bool
	json     bool
}

func (f *crawlFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", 0,
		"deepest level to visit, seeds are depth 0; -1 is unlimited (default: crawler.max_depth)")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "stop after N processed pages (default: crawler.max_pages)")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "only visit URLs whose path starts with one of these prefixes")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the result as JSON")
}

func (f *crawlFlags) options(cmd *cobra.Command, a *app) crawl.Options {
	opts := crawl.Options{
		MaxDepth:      *a.cfg.Crawler.MaxDepth,
		MaxPages:      a.cfg.Crawler.MaxPages,
		ProgressEvery: a.cfg.Crawler.ProgressEvery,
		Progress:      crawl.LogSink(a.logger),
		Rewalk:        f.rewalk,
		Include:       pathPrefixFilter(a.cfg.Site.BaseURL, f.include),
	}
	if cmd.Flags().Changed("max-depth") {
		opts.MaxDepth = f.maxDepth
	}
	if cmd.Flags().Changed("max-pages") {
		opts.MaxPages = f.maxPages
	}
	return opts
}

func newCrawlCmd(a *app) *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl [seed...]",
		Short: "Breadth-first crawl of the wiki into the content cache",
		Long: `Crawls the wiki breadth-first from the given seeds (default: site.seeds).
Seeds may be absolute URLs or paths relative to site.base_url. Pages already in
the content cache are treated as visited unless --rewalk is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.crawler(cmd.Context())
			if err != nil {
				return err
			}
			opts := f.options(cmd, a)
			opts.Seeds = args
			if len(opts.Seeds) == 0 {
				opts.Seeds = a.cfg.Site.Seeds
			}
			if len(opts.Seeds) == 0 {
				return fmt.Errorf("no seeds: pass at least one or set site.seeds")
			}

			res, err := svc.Crawl(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
			return printCrawlResult(cmd.OutOrStdout(), res, f.json)
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&f.rewalk, "rewalk", false, "walk cached pages again to discover links they reference")
	return cmd
}

func newCrawlCacheCmd(a *app) *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl-cache",
		Short: "Resume a crawl from links found in already cached pages",
		Long: `Scans every cached page without network access, collects the in-scope links
that are not cached yet and crawls them as a new depth-0 frontier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.crawler(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.CrawlFromCache(cmd.Context(), f.options(cmd, a))
			if err != nil {
				return fmt.Errorf("crawl from cache: %w", err)
			}
			return printCrawlResult(cmd.OutOrStdout(), res, f.json)
		},
	}
	f.bind(cmd)
	return cmd
}

// pathPrefixFilter accepts URLs whose path (relative to base) starts with one of prefixes.
func pathPrefixFilter(base string, prefixes []string) func(string) bool {
	if len(prefixes) == 0 {
		return nil
	}
	base = strings.TrimRight(base, "/")
	return func(u string) bool {
		p := strings.TrimPrefix(u, base)
		for _, prefix := range prefixes {
			if strings.HasPrefix(strings.ToLower(p), strings.ToLower(prefix)) {
				return true
			}
		}
		return false
	}
}

type crawlSummary struct {
	TotalPages      int            `json:"total_pages"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	Fetched         int            `json:"fetched"`
	FromCache       int            `json:"from_cache"`
	Discovered      int            `json:"discovered"`
	Skipped         int            `json:"skipped"`
	MaxDepth        int            `json:"max_depth"`
	EnqueuedByDepth map[int]int    `json:"enqueued_by_depth"`
	DurationSec     float64        `json:"duration_sec"`
	Cancelled       bool           `json:"cancelled"`
	BudgetExhausted bool           `json:"budget_exhausted"`
	Errors          []crawlFailure `json:"errors,omitempty"`
}

type crawlFailure struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
	Error string `json:"error"`
}

func summarizeCrawl(res *crawl.Result) crawlSummary {
	s := crawlSummary{
		TotalPages:      res.Stats.TotalPages,
		Succeeded:       res.Stats.Succeeded,
		Failed:          res.Stats.Failed,
		Fetched:         res.Stats.Fetched,
		FromCache:       res.Stats.FromCache,
		Discovered:      res.Stats.Discovered,
		Skipped:         res.Stats.Skipped,
		MaxDepth:        res.Stats.MaxDepth,
		EnqueuedByDepth: res.Stats.EnqueuedByDepth,
		DurationSec:     res.Stats.Duration.Seconds(),
		Cancelled:       res.Cancelled,
		BudgetExhausted: res.BudgetExhausted,
	}
	for _, e := range res.Errors {
		s.Errors = append(s.Errors, crawlFailure{URL: e.URL, Depth: e.Depth, Error: e.Err.Error()})
	}
	return s
}

func printCrawlResult(w io.Writer, res *crawl.Result, asJSON bool) error {
	s := summarizeCrawl(res)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Crawled %d pages in %.1fs (%d ok, %d failed)\n",
		s.TotalPages, s.DurationSec, s.Succeeded, s.Failed)
	fmt.Fprintf(w, "  fetched:    %d\n", s.Fetched)
	fmt.Fprintf(w, "  from cache: %d\n", s.FromCache)
	fmt.Fprintf(w, "  discovered: %d\n", s.Discovered)
	fmt.Fprintf(w, "  skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "  max depth:  %d\n", s.MaxDepth)

	depths := make([]int, 0, len(s.EnqueuedByDepth))
	for d := range s.EnqueuedByDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)
	for _, d := range depths {
		fmt.Fprintf(w, "  depth %d:    %d enqueued\n", d, s.EnqueuedByDepth[d])
	}

	switch {
	case s.Cancelled:
		fmt.Fprintln(w, "Crawl was cancelled; run again to resume.")
	case s.BudgetExhausted:
		fmt.Fprintln(w, "Page budget exhausted; run crawl-cache to continue from cached links.")
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  error depth=%d %s: %s\n", e.Depth, e.URL, e.Error)
	}
	return nil
}
