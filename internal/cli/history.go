package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(app func() *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the commits made to the code repository, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			if limit < 0 {
				return fmt.Errorf("-n must not be negative, got %d", limit)
			}
			repo, err := a.Repo(ctx)
			if err != nil {
				return err
			}
			commits, err := repo.History(ctx, limit)
			if err != nil {
				return err
			}
			renderHistory(a.Out, commits)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "number", "n", 20, "maximum number of commits, 0 for all")
	return cmd
}
