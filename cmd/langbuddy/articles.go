package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/ingest"
	"github.com/langbuddy/langbuddy/pkg/reader"
	"github.com/langbuddy/langbuddy/pkg/segment"
)

func newAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Fetch, adapt and analyze an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(); err != nil {
				return err
			}
			svc := a.service()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Fetching %s...\n", args[0])
			id, err := svc.AddArticle(ctx, userFlag(cmd), args[0])
			if err != nil {
				return err
			}
			svc.Wait()

			article, err := db.GetArticle(ctx, a.conn, id)
			if err != nil {
				return err
			}
			if article.Title == reader.FailedTitle {
				return errors.New(article.OriginalText)
			}
			matches, err := db.ListArticleMatches(ctx, a.conn, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Added article %d: %s\n", id, article.Title)
			fmt.Fprintf(out, "Highlighted %d words, recorded %d vocabulary matches.\n",
				len(segment.WordIDs(article.Segments)), len(matches))
			return nil
		},
	}
	cmd.Flags().String("adapter-url", "", "Adaptation service endpoint (empty keeps extracted text)")
	return cmd
}

func newReanalyzeCmd(a *app) *cobra.Command {
	var (
		all   bool
		since string
	)
	cmd := &cobra.Command{
		Use:   "reanalyze",
		Short: "Re-run highlighting and vocabulary matching over stored articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(); err != nil {
				return err
			}
			owner := userFlag(cmd)
			if all {
				owner = ""
			}
			ids, err := db.ArticleIDs(ctx, a.conn, owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Re-analyzing %d articles...\n", len(ids))

			ingester := ingest.NewIngester(a.conn, a.cache)
			ingester.Workers = a.cfg.Ingest.Workers
			ingester.BatchSize = a.cfg.Ingest.BatchSize
			ingester.Logger = a.logger
			ingester.OnProgress = func(current, total int) {
				fmt.Fprintf(out, "Processed %d / %d\n", current, total)
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --skip-since: %w", err)
				}
				ingester.SkipAnalyzedSince = t
			}

			res, err := ingester.Ingest(ctx, ids)
			if err != nil {
				return fmt.Errorf("re-analysis failed: %w", err)
			}
			fmt.Fprintf(out, "Re-analyzed %d articles (%d skipped), %d vocabulary matches.\n",
				res.Articles, res.Skipped, res.Matches)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Re-analyze every user's articles")
	cmd.Flags().StringVar(&since, "skip-since", "", "Skip articles analyzed at or after this RFC 3339 time")
	cmd.Flags().Int("workers", 4, "Concurrent analysis workers")
	cmd.Flags().Int("batch-size", 50, "Articles written per transaction")
	return cmd
}
