package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
)

type tierFlag struct {
	sprint bool
}

func (t *tierFlag) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&t.sprint, "sprint", false, "use the sprint backlog instead of the product backlog")
}

func (t *tierFlag) queue(ctx context.Context, a *App) (*backlog.Queue, error) {
	if t.sprint {
		return a.SprintBacklog(ctx)
	}
	return a.ProductBacklog(ctx)
}

func newBacklogCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "Inspect and edit the product or sprint backlog",
	}
	cmd.AddCommand(
		newBacklogAddCommand(app),
		newBacklogListCommand(app),
		newBacklogRemoveCommand(app),
		newBacklogReprioritizeCommand(app),
	)
	return cmd
}

func newBacklogAddCommand(app func() *App) *cobra.Command {
	var (
		tier     tierFlag
		priority int
	)
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Add a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			q, err := tier.queue(ctx, a)
			if err != nil {
				return err
			}
			oracle, err := a.Oracle(ctx)
			if err != nil {
				return err
			}

			item := backlog.NewWorkItem(priority, args[0])
			vec, err := oracle.Embed(ctx, item.Description)
			if err != nil {
				return fmt.Errorf("failed to embed item: %w", err)
			}
			if err := q.Insert(ctx, item, vec); err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "added %s (priority %d)\n", shortID(item.ID), item.Priority)
			return nil
		},
	}
	tier.register(cmd)
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "priority, lower is more urgent")
	return cmd
}

func newBacklogListCommand(app func() *App) *cobra.Command {
	var tier tierFlag
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items in pop order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			q, err := tier.queue(cmd.Context(), a)
			if err != nil {
				return err
			}
			renderItems(a.Out, q.Namespace(), q.Items())
			return nil
		},
	}
	tier.register(cmd)
	return cmd
}

func newBacklogRemoveCommand(app func() *App) *cobra.Command {
	var tier tierFlag
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a work item by id or id prefix",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			q, err := tier.queue(ctx, a)
			if err != nil {
				return err
			}
			item, err := resolveItem(q, args[0])
			if err != nil {
				return err
			}
			if err := q.Remove(ctx, item.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "removed %s\n", shortID(item.ID))
			return nil
		},
	}
	tier.register(cmd)
	return cmd
}

func newBacklogReprioritizeCommand(app func() *App) *cobra.Command {
	var tier tierFlag
	cmd := &cobra.Command{
		Use:   "reprioritize <id> <priority>",
		Short: "Change the priority of a work item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			q, err := tier.queue(cmd.Context(), a)
			if err != nil {
				return err
			}
			p, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid priority %q: %w", args[1], err)
			}
			item, err := resolveItem(q, args[0])
			if err != nil {
				return err
			}
			q.Reprioritize(item.ID, p)
			fmt.Fprintf(a.Out, "%s now has priority %d\n", shortID(item.ID), p)
			return nil
		},
	}
	tier.register(cmd)
	return cmd
}

// resolveItem finds a queued item by full id or unique id prefix.
func resolveItem(q *backlog.Queue, ref string) (backlog.WorkItem, error) {
	if item, ok := q.Get(ref); ok {
		return item, nil
	}
	matches := q.Filter(func(it backlog.WorkItem) bool {
		return len(ref) >= 4 && strings.HasPrefix(it.ID, ref)
	})
	switch len(matches) {
	case 0:
		return backlog.WorkItem{}, fmt.Errorf("no item matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return backlog.WorkItem{}, fmt.Errorf("%q matches %d items", ref, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
