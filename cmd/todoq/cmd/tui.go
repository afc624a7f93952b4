package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"todoq/internal/tui"
)

// newTUICmd creates the 'tui' subcommand
func newTUICmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), env)
		},
	}
}

// runTUI runs the interactive view until the user quits or a signal arrives
func runTUI(ctx context.Context, env *environment) error {
	a, err := openApp(env, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	model := tui.New(a.cache, tui.Options{
		NewestFirst: a.cfg.IsNewestFirst(),
		Notices:     a.notifier.Notices(),
	})

	a.stop.HandleSignals()
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(env.stdout))
	go func() {
		<-a.stop.Done()
		p.Quit()
	}()

	_, err = p.Run()
	return err
}
