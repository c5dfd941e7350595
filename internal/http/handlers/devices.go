package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/wledfleet/wledd/internal/config"
	"github.com/wledfleet/wledd/internal/errors"
	"github.com/wledfleet/wledd/internal/fleet"
	"github.com/wledfleet/wledd/internal/registry"
	"github.com/wledfleet/wledd/pkg/wled"
)

// FleetService is the part of the fleet controller the API consumes.
type FleetService interface {
	Devices() []fleet.DeviceView
	Device(mac string) (fleet.DeviceView, error)
	AddDevice(ctx context.Context, addr string) (registry.DeviceRecord, error)
	RemoveDevice(mac string) error
	SendState(mac string, patch wled.StatePatch) error
	Pause()
	Resume()
	Paused() bool
}

// DeviceStore is the registry surface used for settings edits.
type DeviceStore interface {
	Get(mac string) (registry.DeviceRecord, bool)
	Save(rec registry.DeviceRecord) error
}

// --- List Devices ---

// ListDevicesInput is the input for listing devices.
type ListDevicesInput struct {
	All bool `query:"all" doc:"Include hidden devices"`
}

// ListDevicesOutput is the output for listing devices.
type ListDevicesOutput struct {
	Body []DeviceResponse
}

// --- Get Device ---

// GetDeviceInput is the input for getting a single device.
type GetDeviceInput struct {
	MAC string `path:"mac" doc:"Device MAC address"`
}

// GetDeviceOutput is the output for getting a single device.
type GetDeviceOutput struct {
	Body DeviceResponse
}

// --- Add Device ---

// AddDeviceInput is the input for registering a device by address.
type AddDeviceInput struct {
	Body struct {
		Address string `json:"address" doc:"Device address (host or host:port)"`
	}
}

// AddDeviceOutput is the output for registering a device.
type AddDeviceOutput struct {
	Body DeviceResponse
}

// --- Update Device ---

// UpdateDeviceInput is the input for patching device settings.
type UpdateDeviceInput struct {
	MAC  string `path:"mac" doc:"Device MAC address"`
	Body struct {
		CustomName *string `json:"custom_name,omitempty" doc:"User-assigned name; empty string clears it"`
		Hidden     *bool   `json:"hidden,omitempty" doc:"Hide the device in UIs"`
		Branch     *string `json:"branch,omitempty" doc:"Update branch (unknown, stable, beta)"`
		SkipTag    *string `json:"skip_tag,omitempty" doc:"Release tag to skip; empty string clears it"`
	}
}

// UpdateDeviceOutput is the output for patching device settings.
type UpdateDeviceOutput struct {
	Body DeviceResponse
}

// --- Delete Device ---

// DeleteDeviceInput is the input for removing a device.
type DeleteDeviceInput struct {
	MAC string `path:"mac" doc:"Device MAC address"`
}

// DeleteDeviceOutput is the output for removing a device.
type DeleteDeviceOutput struct{}

// --- Set Device State ---

// SetDeviceStateInput is the input for sending a state patch to a device.
type SetDeviceStateInput struct {
	MAC  string `path:"mac" doc:"Device MAC address"`
	Body struct {
		On         *bool `json:"on,omitempty" doc:"Power state"`
		Brightness *int  `json:"brightness,omitempty" doc:"Brightness level (0-255)"`
	}
}

// SetDeviceStateOutput is the output for sending a state patch.
type SetDeviceStateOutput struct {
	Body StatusResponse
}

// DeviceHandler implements device-related HTTP handlers.
type DeviceHandler struct {
	Fleet FleetService
	Store DeviceStore
}

// ListDevices returns the fleet's devices. Hidden devices are excluded
// unless all=true.
func (h *DeviceHandler) ListDevices(_ context.Context, input *ListDevicesInput) (*ListDevicesOutput, error) {
	views := h.Fleet.Devices()
	out := make([]DeviceResponse, 0, len(views))
	for _, v := range views {
		if v.Hidden && !input.All {
			continue
		}
		out = append(out, DeviceFromView(v))
	}
	return &ListDevicesOutput{Body: out}, nil
}

// GetDevice returns a single device by MAC.
func (h *DeviceHandler) GetDevice(_ context.Context, input *GetDeviceInput) (*GetDeviceOutput, error) {
	view, err := h.Fleet.Device(input.MAC)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("Device not found: %s", input.MAC))
	}
	return &GetDeviceOutput{Body: DeviceFromView(view)}, nil
}

// AddDevice registers a device by address via first-contact resolution.
func (h *DeviceHandler) AddDevice(ctx context.Context, input *AddDeviceInput) (*AddDeviceOutput, error) {
	rec, err := h.Fleet.AddDevice(ctx, input.Body.Address)
	switch {
	case err == nil:
	case errors.IsInvalidAddress(err):
		return nil, huma.Error400BadRequest(err.Error())
	case errors.IsNoIdentity(err):
		return nil, huma.Error422UnprocessableEntity(err.Error())
	case errors.IsNetwork(err):
		return nil, huma.Error502BadGateway(err.Error())
	default:
		return nil, huma.Error500InternalServerError(err.Error())
	}

	view, err := h.Fleet.Device(rec.MAC)
	if err != nil {
		// The record exists but the connection has not been reconciled yet;
		// answer from the record alone.
		view = fleet.DeviceView{DeviceRecord: rec}
	}
	return &AddDeviceOutput{Body: DeviceFromView(view)}, nil
}

// UpdateDevice patches user-editable settings on a device record.
func (h *DeviceHandler) UpdateDevice(_ context.Context, input *UpdateDeviceInput) (*UpdateDeviceOutput, error) {
	rec, ok := h.Store.Get(input.MAC)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("Device not found: %s", input.MAC))
	}

	if input.Body.Branch != nil {
		branch := registry.Branch(*input.Body.Branch)
		switch branch {
		case registry.BranchUnknown, registry.BranchStable, registry.BranchBeta:
			rec.Branch = branch
		default:
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid branch %q", *input.Body.Branch))
		}
	}
	if input.Body.CustomName != nil {
		rec.CustomName = *input.Body.CustomName
	}
	if input.Body.Hidden != nil {
		rec.Hidden = *input.Body.Hidden
	}
	if input.Body.SkipTag != nil {
		rec.SkipTag = *input.Body.SkipTag
	}

	if err := h.Store.Save(rec); err != nil {
		return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to save device: %s", err))
	}

	view, err := h.Fleet.Device(rec.MAC)
	if err != nil {
		view = fleet.DeviceView{DeviceRecord: rec}
	}
	return &UpdateDeviceOutput{Body: DeviceFromView(view)}, nil
}

// DeleteDevice removes a device record; its live connection is torn down by
// fleet reconciliation.
func (h *DeviceHandler) DeleteDevice(_ context.Context, input *DeleteDeviceInput) (*DeleteDeviceOutput, error) {
	if err := h.Fleet.RemoveDevice(input.MAC); err != nil {
		if errors.IsNotFound(err) {
			return nil, huma.Error404NotFound(fmt.Sprintf("Device not found: %s", input.MAC))
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &DeleteDeviceOutput{}, nil
}

// SetDeviceState sends a partial state patch to a device.
func (h *DeviceHandler) SetDeviceState(_ context.Context, input *SetDeviceStateInput) (*SetDeviceStateOutput, error) {
	if input.Body.On == nil && input.Body.Brightness == nil {
		return nil, huma.Error400BadRequest("state patch is empty")
	}

	var patch wled.StatePatch
	if input.Body.On != nil {
		patch.On = input.Body.On
	}
	if input.Body.Brightness != nil {
		bri := *input.Body.Brightness
		if bri < config.MinBrightness || bri > config.MaxBrightness {
			return nil, huma.Error400BadRequest(fmt.Sprintf("brightness %d out of range %d-%d",
				bri, config.MinBrightness, config.MaxBrightness))
		}
		patch.Bri = input.Body.Brightness
	}

	if err := h.Fleet.SendState(input.MAC, patch); err != nil {
		switch {
		case errors.IsNotFound(err):
			return nil, huma.Error404NotFound(fmt.Sprintf("Device not found: %s", input.MAC))
		case errors.IsDeviceUnavailable(err):
			return nil, huma.Error503ServiceUnavailable(err.Error())
		default:
			return nil, huma.Error500InternalServerError(err.Error())
		}
	}

	return &SetDeviceStateOutput{Body: StatusResponse{Status: "ok"}}, nil
}

// DeviceHandlers defines the interface for device operations.
type DeviceHandlers interface {
	ListDevices(ctx context.Context, input *ListDevicesInput) (*ListDevicesOutput, error)
	GetDevice(ctx context.Context, input *GetDeviceInput) (*GetDeviceOutput, error)
	AddDevice(ctx context.Context, input *AddDeviceInput) (*AddDeviceOutput, error)
	UpdateDevice(ctx context.Context, input *UpdateDeviceInput) (*UpdateDeviceOutput, error)
	DeleteDevice(ctx context.Context, input *DeleteDeviceInput) (*DeleteDeviceOutput, error)
	SetDeviceState(ctx context.Context, input *SetDeviceStateInput) (*SetDeviceStateOutput, error)
}

var _ DeviceHandlers = (*DeviceHandler)(nil)
