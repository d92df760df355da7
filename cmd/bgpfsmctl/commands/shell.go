package commands

import (
	"fmt"

	"github.com/reeflective/console"
	"github.com/spf13/cobra"
)

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive bgpfsmctl console",
		Long:  "Launches a reeflective/console REPL exposing every bgpfsmctl subcommand. Type 'help' or 'exit'.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			app := console.New("bgpfsmctl")

			menu := app.ActiveMenu()
			menu.SetCommands(func() *cobra.Command {
				return rootCmd
			})

			if err := app.Start(); err != nil {
				return fmt.Errorf("start console: %w", err)
			}
			return nil
		},
	}
}
