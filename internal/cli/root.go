// Package cli implements the sprintswarm command line.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit string) {
	appVersion = version
	appCommit = commit
}

type rootOptions struct {
	configPath string
	verbose    bool
	overrides  Overrides
	app        *App
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(Overrides{})
}

func newRootCommand(ov Overrides) *cobra.Command {
	opts := &rootOptions{overrides: ov}

	root := &cobra.Command{
		Use:   "sprintswarm",
		Short: "Simulated agile team that turns a product vision into committed code",
		Long: `SprintSwarm runs a simulated software team. The product owner turns a vision
into a prioritized backlog, the architect lays out the project, sprint planning
breaks items into tasks and the standup drains the sprint backlog, routing each
task to a new or existing file and committing the change to a git repository.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipAppAnnotation] == "true" {
				return nil
			}
			app, err := loadApp(opts.configPath, opts.verbose, cmd.OutOrStdout(), opts.overrides)
			if err != nil {
				return err
			}
			opts.app = app
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./config.yml or $HOME/.sprintswarm/config.yml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	app := func() *App { return opts.app }
	root.AddCommand(
		newBacklogCommand(app),
		newVisionCommand(app),
		newStructureCommand(app),
		newPlanCommand(app),
		newStandupCommand(app),
		newKickoffCommand(app),
		newIndexCommand(app),
		newSearchCommand(app),
		newHistoryCommand(app),
		newMetricsCommand(app),
		newAssistantCommand(app),
		newVersionCommand(),
	)
	closeAfterRun(root, opts)
	return root
}

// closeAfterRun makes every command close the app when its RunE returns,
// failed or not. Cobra skips post-run hooks after a failed RunE.
func closeAfterRun(cmd *cobra.Command, opts *rootOptions) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() { err = errors.Join(err, opts.closeApp()) }()
			return run(cmd, args)
		}
	}
	for _, sub := range cmd.Commands() {
		closeAfterRun(sub, opts)
	}
}

func (o *rootOptions) closeApp() error {
	if o.app == nil {
		return nil
	}
	app := o.app
	o.app = nil
	return app.Close()
}

// skipAppAnnotation marks commands that run without configuration.
const skipAppAnnotation = "sprintswarm/skip-app"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipAppAnnotation: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "sprintswarm %s\ncommit: %s\n", appVersion, appCommit)
}
