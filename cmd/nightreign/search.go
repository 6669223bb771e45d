package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	searchuc "github.com/nooikko/nightreign-query/internal/usecase/search"
)

const snippetRunes = 200

func newSearchCmd(a *app) *cobra.Command {
	var (
		types  []string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid search over the indexed wiki",
		Long: `Runs a hybrid BM25 + vector search. When no query embedding can be obtained
the search falls back to fulltext only.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := filter.Parse(types...)
			if err != nil {
				return err
			}
			svc, err := a.searchService(cmd.Context())
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			resp, err := svc.Query(cmd.Context(), query, filters, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printSearchResults(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "restrict results to these categories (boss, weapon, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func printSearchResults(w io.Writer, resp searchuc.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No results found (%s).\n", resp.Mode)
		return
	}

	fmt.Fprintf(w, "Results (%s):\n\n", resp.Mode)
	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(w, "  [%d] %s [%s] (%.3f)\n", i+1, title, r.Category, r.FusedScore)
		fmt.Fprintf(w, "      %s\n", r.URL)
		if s := snippet(r.Content, snippetRunes); s != "" {
			fmt.Fprintf(w, "      %s\n", s)
		}
		fmt.Fprintln(w)
	}
}

// snippet collapses whitespace and truncates to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
