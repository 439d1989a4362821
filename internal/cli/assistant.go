package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"

	"github.com/chasedowdell/SprintSwarm/internal/assistant"
	"github.com/chasedowdell/SprintSwarm/internal/project"
)

func newAssistantCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assistant [-- launcher args]",
		Short: "Chat with an agent that can search the code and edit the backlog",
		Long: `Start an interactive agent over the team state. Arguments after "--" go to
the ADK launcher, e.g. "sprintswarm assistant -- console" or
"sprintswarm assistant -- web api webui". Requires the gemini provider.`,
		Example: `  sprintswarm assistant -- console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := app()
			if a.Config.LLM.Provider != "gemini" {
				return fmt.Errorf("assistant requires the gemini provider, got %s", a.Config.LLM.Provider)
			}
			if err := a.Config.RequireAPIKey(); err != nil {
				return err
			}

			idx, err := a.Index(ctx)
			if err != nil {
				return err
			}
			oracle, err := a.Oracle(ctx)
			if err != nil {
				return err
			}
			searcher, err := a.Searcher(ctx)
			if err != nil {
				return err
			}
			store, err := a.Store(ctx)
			if err != nil {
				return err
			}
			product, err := a.ProductBacklog(ctx)
			if err != nil {
				return err
			}
			sprint, err := a.SprintBacklog(ctx)
			if err != nil {
				return err
			}
			pc, err := a.ProjectContext(ctx)
			if err != nil {
				return err
			}

			notes := assistant.NewNotes(idx, oracle, a.Config.Index.Namespaces.Notes)
			tools, err := assistant.BuildTools(assistant.ToolsConfig{
				Searcher: searcher,
				Store:    store,
				Product:  product,
				Sprint:   sprint,
				Notes:    notes,
				Embedder: oracle,
			})
			if err != nil {
				return err
			}

			agentCfg := assistant.AgentConfig{
				APIKey: a.Config.LLM.APIKey,
				Model:  a.Config.LLM.CompletionModel,
				Tools:  tools,
			}
			if v, err := pc.Vision(ctx); err == nil {
				agentCfg.Vision = &v
			} else if !errors.Is(err, project.ErrNoContext) {
				return err
			}
			if s, err := pc.Structure(ctx); err == nil {
				agentCfg.Manifest = s.RenderManifest()
			} else if !errors.Is(err, project.ErrNoContext) {
				return err
			}

			llmAgent, err := assistant.NewAgent(ctx, agentCfg)
			if err != nil {
				return err
			}
			a.Logger.Info("assistant ready", zap.Int("tools", len(tools)), zap.Bool("vision", agentCfg.Vision != nil))

			config := &launcher.Config{
				AgentLoader:   agent.NewSingleLoader(llmAgent),
				MemoryService: assistant.NewMemoryService(notes, searcher),
			}
			l := full.NewLauncher()
			if err := l.Execute(ctx, config, args); err != nil {
				return fmt.Errorf("failed to run assistant: %w\n\n%s", err, l.CommandLineSyntax())
			}
			return nil
		},
	}
}
