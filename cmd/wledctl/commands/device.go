package commands

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/wledfleet/wledd/pkg/client"
)

// NewDeviceCommand creates the device command
func NewDeviceCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage fleet devices",
	}

	cmd.AddCommand(
		newDeviceListCommand(),
		newDeviceGetCommand(),
		newDeviceSetCommand(logger),
		newDeviceAddCommand(),
		newDeviceRemoveCommand(),
	)

	return cmd
}

// newDeviceListCommand creates the device list command
func newDeviceListCommand() *cobra.Command {
	var parseable bool
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)
			devices, err := c.ListDevices(all)
			if err != nil {
				return fmt.Errorf("failed to get devices: %w", err)
			}

			if len(devices) == 0 {
				if parseable {
					return nil
				}
				pterm.Info.Println("No devices registered")
				return nil
			}

			sort.Slice(devices, func(i, j int) bool { return devices[i].MAC < devices[j].MAC })

			if parseable {
				// Print one line per device in key=value format
				for _, dev := range devices {
					fmt.Println(DeviceParseable(dev))
				}
				return nil
			}

			// Create a table for each device
			for _, dev := range devices {
				pterm.DefaultTable.WithData(DeviceTableData(dev)).Render()
				pterm.Println() // Add a blank line between devices
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include hidden devices")
	return cmd
}

// selectDevice resolves a MAC from args, falling back to an interactive
// dropdown when none was given.
func selectDevice(cmd *cobra.Command, args []string, c client.ClientInterface) (string, error) {
	if len(args) > 0 {
		return normalizeMAC(args[0]), nil
	}

	devices, err := c.ListDevices(true)
	if err != nil {
		return "", fmt.Errorf("failed to get devices: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("no devices registered")
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].MAC < devices[j].MAC })
	options := make([]string, len(devices))
	for i, dev := range devices {
		options[i] = fmt.Sprintf("%s (%s)", dev.MAC, dev.Name)
	}

	selected, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		Show("Select a device")
	if err != nil {
		return "", fmt.Errorf("failed to select device: %w", err)
	}

	return strings.Split(selected, " (")[0], nil
}

// normalizeMAC lowercases a MAC and strips separators so users can paste
// either aa:bb:cc:dd:ee:ff or aabbccddeeff.
func normalizeMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.ReplaceAll(mac, ":", "")
	return strings.ReplaceAll(mac, "-", "")
}

// newDeviceGetCommand creates the device get command
func newDeviceGetCommand() *cobra.Command {
	var parseable bool
	cmd := &cobra.Command{
		Use:   "get [mac]",
		Short: "Get information about a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)

			mac, err := selectDevice(cmd, args, c)
			if err != nil {
				return err
			}

			dev, err := c.GetDevice(mac)
			if err != nil {
				return fmt.Errorf("failed to get device: %w", err)
			}

			if parseable {
				fmt.Println(DeviceParseable(dev))
			} else {
				pterm.DefaultTable.WithData(DeviceTableData(dev)).Render()
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parseable, "parseable", "p", false, "Output in parseable format (key=value)")
	return cmd
}

// newDeviceSetCommand creates the device set command
func newDeviceSetCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [mac] [property] [value]",
		Short: "Set a device property",
		Long: `Set a device property.

Live state: on, brightness
Settings:   name, hidden, branch, skip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)

			mac, err := selectDevice(cmd, args, c)
			if err != nil {
				return err
			}

			var property string
			if len(args) > 1 {
				property = strings.ToLower(args[1])
			} else {
				property, err = pterm.DefaultInteractiveSelect.
					WithOptions([]string{"on", "brightness", "name", "hidden", "branch", "skip"}).
					Show("Select property to set")
				if err != nil {
					return fmt.Errorf("failed to select property: %w", err)
				}
			}

			var value string
			if len(args) > 2 {
				value = args[2]
			} else {
				value, err = pterm.DefaultInteractiveTextInput.
					WithMultiLine(false).
					Show(fmt.Sprintf("Enter value for %s", property))
				if err != nil {
					return fmt.Errorf("failed to get value: %w", err)
				}
			}

			switch property {
			case "on":
				on := value == "true" || value == "on"
				if err := c.SetDeviceState(mac, map[string]any{"on": on}); err != nil {
					return fmt.Errorf("failed to set power state: %w", err)
				}
			case "brightness":
				bri, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid brightness value: %w", err)
				}
				if err := c.SetDeviceState(mac, map[string]any{"brightness": bri}); err != nil {
					return fmt.Errorf("failed to set brightness: %w", err)
				}
			case "name":
				if _, err := c.UpdateDevice(mac, map[string]any{"custom_name": value}); err != nil {
					return fmt.Errorf("failed to set name: %w", err)
				}
			case "hidden":
				hidden := value == "true"
				if _, err := c.UpdateDevice(mac, map[string]any{"hidden": hidden}); err != nil {
					return fmt.Errorf("failed to set hidden: %w", err)
				}
			case "branch":
				if _, err := c.UpdateDevice(mac, map[string]any{"branch": value}); err != nil {
					return fmt.Errorf("failed to set branch: %w", err)
				}
			case "skip":
				if _, err := c.UpdateDevice(mac, map[string]any{"skip_tag": value}); err != nil {
					return fmt.Errorf("failed to set skip tag: %w", err)
				}
			default:
				return fmt.Errorf("invalid property: %s. Must be one of: on, brightness, name, hidden, branch, skip", property)
			}

			logger.Debug("device property set", "mac", mac, "property", property, "value", value)
			pterm.Success.Printf("Set %s on %s\n", property, mac)
			return nil
		},
	}
	return cmd
}

// newDeviceAddCommand creates the device add command
func newDeviceAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Register a device by address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)
			dev, err := c.AddDevice(args[0])
			if err != nil {
				return fmt.Errorf("failed to add device: %w", err)
			}
			pterm.Success.Printf("Added %s (%s)\n", dev.MAC, dev.Name)
			return nil
		},
	}
	return cmd
}

// newDeviceRemoveCommand creates the device remove command
func newDeviceRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove [mac]",
		Short: "Remove a device from the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cmd.Context().Value(ClientContextKey).(client.ClientInterface)

			mac, err := selectDevice(cmd, args, c)
			if err != nil {
				return err
			}

			if err := c.DeleteDevice(mac); err != nil {
				return fmt.Errorf("failed to remove device: %w", err)
			}
			pterm.Success.Printf("Removed %s\n", mac)
			return nil
		},
	}
	return cmd
}
