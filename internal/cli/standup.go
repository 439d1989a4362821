package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newStandupCommand(app func() *App) *cobra.Command {
	var (
		serveMetrics bool
		branch       string
	)
	cmd := &cobra.Command{
		Use:   "standup",
		Short: "Drain the sprint backlog into committed change requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			if branch != "" {
				repo, err := a.Repo(ctx)
				if err != nil {
					return err
				}
				if err := repo.CreateBranch(ctx, branch); err != nil {
					return err
				}
				a.Logger.Info("committing to new branch", zap.String("branch", branch))
			}
			driver, err := a.Driver(ctx)
			if err != nil {
				return err
			}

			if !serveMetrics {
				summary := driver.RunCycle(ctx)
				renderSummary(a.Out, summary)
				return failureError(summary.TotalFailures())
			}

			serveCtx, stop := context.WithCancel(ctx)
			g, gctx := errgroup.WithContext(serveCtx)
			g.Go(func() error {
				return a.Metrics.Serve(gctx, a.Config.Metrics.Listen)
			})
			summary := driver.RunCycle(ctx)
			stop()
			if err := g.Wait(); err != nil {
				return err
			}
			renderSummary(a.Out, summary)
			return failureError(summary.TotalFailures())
		},
	}
	cmd.Flags().BoolVar(&serveMetrics, "serve-metrics", false, "expose /metrics while the cycle runs")
	cmd.Flags().StringVar(&branch, "branch", "", "create and check out this branch before committing")
	return cmd
}

// failureError turns a non-zero failure count into a non-zero exit status.
func failureError(n int) error {
	if n == 0 {
		return nil
	}
	return fmt.Errorf("standup finished with %d failures", n)
}
