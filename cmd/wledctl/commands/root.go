package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wledfleet/wledd/pkg/client"
)

// Define a custom type for context keys to avoid collisions
type loggerContextKey struct{}

// NewRootCommand creates the root command
func NewRootCommand(logger *slog.Logger, version, commit, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wledctl",
		Short: "Control a fleet of WLED devices",
	}

	// Add global flags
	cmd.PersistentFlags().String("server", "", "wledd API address (host:port or URL)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	// Add commands
	cmd.AddCommand(newVersionCommand(version, commit, buildDate))
	cmd.AddCommand(NewDeviceCommand(logger))
	cmd.AddCommand(NewFleetCommand(logger))

	if logger != nil {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		cmd.SetContext(context.WithValue(parent, loggerContextKey{}, logger))
	}

	return cmd
}

// newVersionCommand creates the version command
func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Client:\n")
			fmt.Printf("  Version:    %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)

			// Try to query the daemon for its version
			if c, ok := cmd.Context().Value(ClientContextKey).(client.ClientInterface); ok {
				info, err := c.GetVersion()
				if err == nil {
					fmt.Printf("\nDaemon:\n")
					fmt.Printf("  Version:    %s\n", info.Version)
					fmt.Printf("  Commit:     %s\n", info.Commit)
					fmt.Printf("  Build Date: %s\n", info.BuildDate)
				} else {
					fmt.Printf("\nDaemon: not reachable\n")
				}
			}
		},
	}
}
