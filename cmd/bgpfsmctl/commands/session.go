package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage BGP peer sessions",
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionEnableCmd())
	cmd.AddCommand(sessionDisableCmd())

	return cmd
}

// --- session list ---

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured BGP peer sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sessions, err := client.ListSessions(context.Background())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out, err := formatSessions(sessions, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// --- session show ---

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <peer-address>",
		Short: "Show details of a BGP peer session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			session, err := client.GetSession(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			out, err := formatSession(session, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// --- session enable ---

func sessionEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <peer-address>",
		Short: "Administratively enable a BGP peer session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := client.EnableSession(context.Background(), args[0]); err != nil {
				return fmt.Errorf("enable session: %w", err)
			}
			fmt.Printf("Session %s enabled.\n", args[0])
			return nil
		},
	}
}

// --- session disable ---

func sessionDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <peer-address>",
		Short: "Administratively disable a BGP peer session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := client.DisableSession(context.Background(), args[0]); err != nil {
				return fmt.Errorf("disable session: %w", err)
			}
			fmt.Printf("Session %s disabled.\n", args[0])
			return nil
		},
	}
}
