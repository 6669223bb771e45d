package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index every cached page",
		Long: `Converts every page in the content cache to Markdown, splits it into
heading-aware chunks, embeds them and upserts them into the Redis search index.
Chunks left over from a previous, longer version of a page are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.ingester(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Ingested %d/%d pages in %.1fs\n", res.Indexed, res.Pages, res.Duration.Seconds())
			fmt.Fprintf(w, "  chunks: %d\n", res.Chunks)
			fmt.Fprintf(w, "  pruned: %d\n", res.Pruned)
			fmt.Fprintf(w, "  tokens: %d\n", res.Tokens)
			for _, e := range res.Errors {
				fmt.Fprintf(w, "  error %s: %v\n", e.URL, e.Err)
			}
			return nil
		},
	}
}
