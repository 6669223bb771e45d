package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the content cache",
	}
	cmd.AddCommand(newCacheListCmd(a), newCachePurgeCmd(a))
	return cmd
}

func newCacheListCmd(a *app) *cobra.Command {
	var countOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached page URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pages, err := a.pageCache(cmd.Context())
			if err != nil {
				return err
			}
			urls, err := pages.ListKeys(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if countOnly {
				fmt.Fprintln(w, len(urls))
				return nil
			}
			for _, u := range urls {
				fmt.Fprintln(w, u)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of cached pages")
	return cmd
}

func newCachePurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <url>...",
		Short: "Remove pages from the content cache so the next crawl fetches them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := a.pageCache(cmd.Context())
			if err != nil {
				return err
			}

			purged := 0
			for _, u := range args {
				if err := pages.Purge(cmd.Context(), u); err != nil {
					a.logger.Warn("Failed to purge page", zap.String("url", u), zap.Error(err))
					continue
				}
				purged++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d/%d pages\n", purged, len(args))
			if purged < len(args) {
				return fmt.Errorf("%d pages could not be purged", len(args)-purged)
			}
			return nil
		},
	}
}
