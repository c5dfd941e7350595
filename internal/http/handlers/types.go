// Package handlers provides typed Huma request/response structs and handler
// implementations for the wledd HTTP API.
package handlers

import (
	"time"

	"github.com/wledfleet/wledd/internal/fleet"
	"github.com/wledfleet/wledd/pkg/wled"
)

// DeviceResponse is the API representation of a fleet device: the persisted
// record joined with its live connection state.
type DeviceResponse struct {
	MAC          string      `json:"mac" doc:"MAC address, the device's durable identity"`
	Address      string      `json:"address" doc:"Network address (host or host:port)"`
	Name         string      `json:"name" doc:"Display name (custom name if set, else device-reported)"`
	CustomName   string      `json:"custom_name,omitempty" doc:"User-assigned name"`
	OriginalName string      `json:"original_name,omitempty" doc:"Device-reported name"`
	Hidden       bool        `json:"hidden" doc:"Whether the device is hidden in UIs"`
	Branch       string      `json:"branch" doc:"Update branch (unknown, stable, beta)"`
	SkipTag      string      `json:"skip_tag,omitempty" doc:"Release tag the user chose to skip"`
	LastSeen     time.Time   `json:"last_seen" doc:"Last time the device was heard from"`
	Status       wled.Status `json:"status" doc:"Connection status"`
	Version      string      `json:"version,omitempty" doc:"Firmware version the device reported"`
	Signal       int         `json:"signal,omitempty" doc:"WiFi signal quality the device reported"`
	UpdateTag    string      `json:"update_tag,omitempty" doc:"Release tag offered as an update, if any"`
	State        *wled.State `json:"state,omitempty" doc:"Last received state snapshot"`
}

// DeviceFromView converts a fleet.DeviceView to a DeviceResponse.
func DeviceFromView(v fleet.DeviceView) DeviceResponse {
	return DeviceResponse{
		MAC:          v.MAC,
		Address:      v.Address,
		Name:         v.DisplayName(),
		CustomName:   v.CustomName,
		OriginalName: v.OriginalName,
		Hidden:       v.Hidden,
		Branch:       string(v.Branch),
		SkipTag:      v.SkipTag,
		LastSeen:     v.LastSeen,
		Status:       v.Status,
		Version:      v.Version,
		Signal:       v.Signal,
		UpdateTag:    v.UpdateTag,
		State:        v.State,
	}
}

// DevicesFromViews converts a slice of fleet.DeviceView to DeviceResponses.
func DevicesFromViews(views []fleet.DeviceView) []DeviceResponse {
	result := make([]DeviceResponse, len(views))
	for i, v := range views {
		result[i] = DeviceFromView(v)
	}
	return result
}

// StatusResponse is a simple status response.
type StatusResponse struct {
	Status string `json:"status" doc:"Operation status"`
}

// VersionResponse carries the daemon's build information.
type VersionResponse struct {
	Version   string `json:"version" doc:"Daemon version"`
	Commit    string `json:"commit" doc:"Git commit the daemon was built from"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
}
