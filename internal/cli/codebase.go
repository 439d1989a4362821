package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/codebase"
)

func newIndexCommand(app func() *App) *cobra.Command {
	var (
		watch    bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Summarize and index every function of the repository",
		Long: `Walk the repository, summarize each Python and Go function with the oracle
and store the summary embeddings in the codebase namespace. Functions whose
code is unchanged since the last run keep their summary. With --watch the
command keeps running and reindexes files as they change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			indexer, err := a.Indexer(ctx)
			if err != nil {
				return err
			}

			stats, err := indexer.IndexAll(ctx)
			a.Metrics.AddIndexed(stats.Indexed)
			renderStats(a.Out, stats)
			if err != nil {
				return err
			}
			if !watch {
				return nil
			}

			a.Logger.Info("watching for changes", zap.String("root", indexer.Root()), zap.Duration("debounce", debounce))
			return indexer.Watch(ctx, debounce)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep the index current as files change")
	cmd.Flags().DurationVar(&debounce, "debounce", codebase.DefaultDebounce, "quiet period before changed files are reindexed")
	return cmd
}

func newSearchCommand(app func() *App) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the indexed functions most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			if k < 1 {
				return fmt.Errorf("-k must be at least 1, got %d", k)
			}
			searcher, err := a.Searcher(ctx)
			if err != nil {
				return err
			}
			matches, err := searcher.Search(ctx, args[0], k)
			if err != nil {
				return err
			}
			renderMatches(a.Out, matches)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 5, "number of matches")
	return cmd
}
