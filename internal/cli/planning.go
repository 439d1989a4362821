package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chasedowdell/SprintSwarm/internal/project"
)

// readVision loads a vision from a YAML (or JSON) file.
func readVision(path string) (project.Vision, error) {
	var v project.Vision
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("failed to read vision: %w", err)
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to parse vision %s: %w", path, err)
	}
	return v, nil
}

func newVisionCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "vision <vision.yml>",
		Short: "Turn a product vision into the product backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			vision, err := readVision(args[0])
			if err != nil {
				return err
			}
			po, err := a.ProductOwner(ctx)
			if err != nil {
				return err
			}
			items, err := po.ReceiveVision(ctx, vision)
			renderItems(a.Out, a.Config.Index.Namespaces.Backlog, items)
			return err
		},
	}
}

func newStructureCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "structure [vision.yml]",
		Short: "Design the project structure and create skeleton files",
		Long: `Ask the architect for the project structure, store it with the vision and
create one skeleton file per planned entry. Without an argument the stored
vision is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			vision, err := visionFromArgs(ctx, a, args)
			if err != nil {
				return err
			}
			architect, err := a.Architect(ctx)
			if err != nil {
				return err
			}
			structure, err := architect.CreateProject(ctx, vision)
			if err != nil {
				return err
			}
			renderStructure(a.Out, structure)
			return nil
		},
	}
}

func visionFromArgs(ctx context.Context, a *App, args []string) (project.Vision, error) {
	if len(args) == 1 {
		return readVision(args[0])
	}
	pc, err := a.ProjectContext(ctx)
	if err != nil {
		return project.Vision{}, err
	}
	v, err := pc.Vision(ctx)
	if errors.Is(err, project.ErrNoContext) {
		return v, fmt.Errorf("no stored vision, pass a vision file: %w", err)
	}
	return v, err
}

func newPlanCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Move the top product backlog items into the sprint backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			planner, err := a.SprintPlanner(ctx)
			if err != nil {
				return err
			}
			planned, err := planner.Plan(ctx)
			renderPlan(a.Out, planned)
			return err
		},
	}
}

func newKickoffCommand(app func() *App) *cobra.Command {
	var sprints int
	cmd := &cobra.Command{
		Use:   "kickoff <vision.yml>",
		Short: "Run vision, structure, planning and standup in sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			vision, err := readVision(args[0])
			if err != nil {
				return err
			}

			po, err := a.ProductOwner(ctx)
			if err != nil {
				return err
			}
			items, err := po.ReceiveVision(ctx, vision)
			if err != nil {
				return err
			}
			renderItems(a.Out, a.Config.Index.Namespaces.Backlog, items)

			architect, err := a.Architect(ctx)
			if err != nil {
				return err
			}
			structure, err := architect.CreateProject(ctx, vision)
			if err != nil {
				return err
			}
			renderStructure(a.Out, structure)

			product, err := a.ProductBacklog(ctx)
			if err != nil {
				return err
			}
			planner, err := a.SprintPlanner(ctx)
			if err != nil {
				return err
			}
			driver, err := a.Driver(ctx)
			if err != nil {
				return err
			}

			for n := 1; n <= sprints && product.Len() > 0; n++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintln(a.Out, styles.title.Render(fmt.Sprintf("Sprint %d", n)))
				planned, err := planner.Plan(ctx)
				renderPlan(a.Out, planned)
				if err != nil {
					a.Logger.Warn("sprint planning incomplete", zap.Int("sprint", n), zap.Error(err))
				}
				renderSummary(a.Out, driver.RunCycle(ctx))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&sprints, "sprints", 1, "number of plan and standup rounds")
	return cmd
}
