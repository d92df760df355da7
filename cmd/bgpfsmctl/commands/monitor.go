package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trungkstn/bgpfsmd/internal/adminapi"
)

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream BGP peer session events",
		Long:  "Connects to the bgpfsmd daemon and streams session events until interrupted (Ctrl+C).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := client.WatchEvents(ctx, func(ev adminapi.SessionEventPayload) error {
				out, fmtErr := formatEvent(ev, outputFormat)
				if fmtErr != nil {
					return fmt.Errorf("format event: %w", fmtErr)
				}
				fmt.Println(out)
				return nil
			})
			if err != nil {
				return fmt.Errorf("watch session events: %w", err)
			}
			return nil
		},
	}

	return cmd
}
