package handlers

import (
	"context"
)

// --- Fleet status ---

// FleetStatusInput is the input for the fleet status endpoint.
type FleetStatusInput struct{}

// FleetStatusOutput is the output for the fleet status endpoint.
type FleetStatusOutput struct {
	Body struct {
		Paused  bool `json:"paused" doc:"Whether the fleet is paused"`
		Devices int  `json:"devices" doc:"Number of known devices"`
	}
}

// --- Pause / Resume ---

// FleetPauseInput is the input for pausing or resuming the fleet.
type FleetPauseInput struct{}

// FleetPauseOutput is the output for pausing or resuming the fleet.
type FleetPauseOutput struct {
	Body StatusResponse
}

// FleetHandler implements fleet lifecycle HTTP handlers.
type FleetHandler struct {
	Fleet FleetService
}

// GetStatus reports whether the fleet is paused and how many devices it knows.
func (h *FleetHandler) GetStatus(_ context.Context, _ *FleetStatusInput) (*FleetStatusOutput, error) {
	out := &FleetStatusOutput{}
	out.Body.Paused = h.Fleet.Paused()
	out.Body.Devices = len(h.Fleet.Devices())
	return out, nil
}

// Pause disconnects every device connection without destroying it.
func (h *FleetHandler) Pause(_ context.Context, _ *FleetPauseInput) (*FleetPauseOutput, error) {
	h.Fleet.Pause()
	return &FleetPauseOutput{Body: StatusResponse{Status: "paused"}}, nil
}

// Resume reconnects every device connection.
func (h *FleetHandler) Resume(_ context.Context, _ *FleetPauseInput) (*FleetPauseOutput, error) {
	h.Fleet.Resume()
	return &FleetPauseOutput{Body: StatusResponse{Status: "running"}}, nil
}

// FleetHandlers defines the interface for fleet lifecycle operations.
type FleetHandlers interface {
	GetStatus(ctx context.Context, input *FleetStatusInput) (*FleetStatusOutput, error)
	Pause(ctx context.Context, input *FleetPauseInput) (*FleetPauseOutput, error)
	Resume(ctx context.Context, input *FleetPauseInput) (*FleetPauseOutput, error)
}

var _ FleetHandlers = (*FleetHandler)(nil)
