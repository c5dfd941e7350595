package commands

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/wledfleet/wledd/pkg/client"
)

// NewFleetCommand creates the fleet command
func NewFleetCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Control the fleet as a whole",
	}

	cmd.AddCommand(
		newFleetStatusCommand(),
		newFleetPauseCommand(),
		newFleetResumeCommand(),
	)

	return cmd
}

// newFleetStatusCommand creates the fleet status command
func newFleetStatusCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show fleet status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)
			status, err := c.GetFleetStatus()
			if err != nil {
				return fmt.Errorf("failed to get fleet status: %w", err)
			}

			state := "running"
			if status.Paused {
				state = "paused"
			}

			if parseable {
				fmt.Printf("state=%q devices=%d\n", state, status.Devices)
				return nil
			}

			table := pterm.TableData{
				[]string{"State", state},
				[]string{"Devices", fmt.Sprintf("%d", status.Devices)},
			}
			pterm.DefaultTable.WithData(table).Render()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

// newFleetPauseCommand creates the fleet pause command
func newFleetPauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Disconnect all devices without forgetting them",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)
			if err := c.PauseFleet(); err != nil {
				return fmt.Errorf("failed to pause fleet: %w", err)
			}
			pterm.Success.Println("Fleet paused")
			return nil
		},
	}
}

// newFleetResumeCommand creates the fleet resume command
func newFleetResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Reconnect all devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)
			if err := c.ResumeFleet(); err != nil {
				return fmt.Errorf("failed to resume fleet: %w", err)
			}
			pterm.Success.Println("Fleet resumed")
			return nil
		},
	}
}
