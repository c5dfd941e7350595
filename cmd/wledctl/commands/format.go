package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/wledfleet/wledd/pkg/client"
)

// DeviceTableData returns the table data for a device, with bold MAC and name
func DeviceTableData(dev client.Device) pterm.TableData {
	rows := pterm.TableData{
		[]string{pterm.Bold.Sprint("MAC"), pterm.Bold.Sprint(dev.MAC)},
		[]string{"Name", dev.Name},
		[]string{"Address", dev.Address},
		[]string{"Status", dev.Status},
		[]string{"Version", orNA(dev.Version)},
		[]string{"Branch", dev.Branch},
		[]string{"Signal", fmt.Sprintf("%d", dev.Signal)},
		[]string{"Hidden", fmt.Sprintf("%v", dev.Hidden)},
		[]string{"Last Seen", formatLastSeen(dev.LastSeen)},
	}
	if dev.UpdateTag != "" {
		rows = append(rows, []string{"Update", dev.UpdateTag})
	}
	if dev.SkipTag != "" {
		rows = append(rows, []string{"Skipped", dev.SkipTag})
	}
	return rows
}

// DeviceParseable returns the parseable key=value string for a device
func DeviceParseable(dev client.Device) string {
	lastSeenUnix := "0"
	if !dev.LastSeen.IsZero() {
		lastSeenUnix = fmt.Sprintf("%d", dev.LastSeen.Unix())
	}
	parts := []string{
		fmt.Sprintf("mac=%q", dev.MAC),
		fmt.Sprintf("name=%q", dev.Name),
		fmt.Sprintf("address=%q", dev.Address),
		fmt.Sprintf("status=%q", dev.Status),
		fmt.Sprintf("version=%q", dev.Version),
		fmt.Sprintf("branch=%q", dev.Branch),
		fmt.Sprintf("signal=%d", dev.Signal),
		fmt.Sprintf("hidden=%v", dev.Hidden),
		fmt.Sprintf("update_tag=%q", dev.UpdateTag),
		fmt.Sprintf("skip_tag=%q", dev.SkipTag),
		fmt.Sprintf("lastseen=%s", lastSeenUnix),
	}
	return strings.Join(parts, " ")
}

// formatLastSeen formats the LastSeen time for display
func formatLastSeen(t time.Time) string {
	if !t.IsZero() {
		return t.Format(time.RFC1123Z)
	}
	return "N/A"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
