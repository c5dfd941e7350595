package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/wledfleet/wledd/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
func Register(api huma.API, h *Handlers) {
	// --- Health ---
	mw.Get(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	mw.HiddenGet(api, "/healthz", h.HealthCheck)

	// --- Version ---
	mw.Get(api, "/api/v1/version", h.Version.GetVersion,
		mw.WithTags("Version"),
		mw.WithSummary("Daemon version"),
		mw.WithDescription("Returns the running daemon's version, commit, and build date."),
		mw.WithOperationID("getVersion"))

	// --- Devices ---
	mw.Get(api, "/api/v1/devices", h.Device.ListDevices,
		mw.WithTags("Devices"),
		mw.WithSummary("List devices"),
		mw.WithDescription("Returns all registered devices joined with their live connection state. Hidden devices are excluded unless all=true."),
		mw.WithOperationID("listDevices"))

	mw.Post(api, "/api/v1/devices", h.Device.AddDevice,
		mw.WithTags("Devices"),
		mw.WithSummary("Add a device by address"),
		mw.WithDescription("Contacts the device at the given address, reads its identity, and registers it."),
		mw.WithOperationID("addDevice"),
		mw.WithDefaultStatus(201))

	mw.Get(api, "/api/v1/devices/{mac}", h.Device.GetDevice,
		mw.WithTags("Devices"),
		mw.WithSummary("Get a device"),
		mw.WithOperationID("getDevice"))

	mw.Patch(api, "/api/v1/devices/{mac}", h.Device.UpdateDevice,
		mw.WithTags("Devices"),
		mw.WithSummary("Update device settings"),
		mw.WithDescription("Patch user-editable settings: custom name, hidden flag, update branch, skip tag."),
		mw.WithOperationID("updateDevice"))

	mw.Delete(api, "/api/v1/devices/{mac}", h.Device.DeleteDevice,
		mw.WithTags("Devices"),
		mw.WithSummary("Remove a device"),
		mw.WithOperationID("deleteDevice"),
		mw.WithDefaultStatus(204))

	mw.Post(api, "/api/v1/devices/{mac}/state", h.Device.SetDeviceState,
		mw.WithTags("Devices"),
		mw.WithSummary("Set device state"),
		mw.WithDescription("Send a partial state patch (on, brightness) over the device's live connection."),
		mw.WithOperationID("setDeviceState"))

	// --- Fleet ---
	mw.Get(api, "/api/v1/fleet", h.Fleet.GetStatus,
		mw.WithTags("Fleet"),
		mw.WithSummary("Fleet status"),
		mw.WithOperationID("getFleetStatus"))

	mw.Post(api, "/api/v1/fleet/pause", h.Fleet.Pause,
		mw.WithTags("Fleet"),
		mw.WithSummary("Pause the fleet"),
		mw.WithDescription("Disconnects every device connection without destroying it and flushes pending registry writes."),
		mw.WithOperationID("pauseFleet"))

	mw.Post(api, "/api/v1/fleet/resume", h.Fleet.Resume,
		mw.WithTags("Fleet"),
		mw.WithSummary("Resume the fleet"),
		mw.WithDescription("Reconnects every device connection after a pause."),
		mw.WithOperationID("resumeFleet"))
}
