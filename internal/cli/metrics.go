package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMetricsCommand(app func() *App) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve backlog gauges on /metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			product, err := a.ProductBacklog(ctx)
			if err != nil {
				return err
			}
			sprint, err := a.SprintBacklog(ctx)
			if err != nil {
				return err
			}
			a.Metrics.SetQueueDepth(product.Namespace(), product.Len())
			a.Metrics.SetQueueDepth(sprint.Namespace(), sprint.Len())

			addr := a.Config.Metrics.Listen
			if listen != "" {
				addr = listen
			}
			a.Logger.Info("serving metrics", zap.String("addr", addr))
			return a.Metrics.Serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default metrics.listen)")
	return cmd
}
