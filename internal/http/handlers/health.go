package handlers

import (
	"context"
)

// --- Health Check ---

// HealthInput is the input for health check endpoints.
type HealthInput struct{}

// HealthOutput is the output for health check endpoints.
type HealthOutput struct {
	Body struct {
		Status string `json:"status" doc:"Service health status"`
	}
}

// HealthCheck returns the service health status.
func HealthCheck(_ context.Context, _ *HealthInput) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// --- Version ---

// VersionInput is the input for the version endpoint.
type VersionInput struct{}

// VersionOutput is the output for the version endpoint.
type VersionOutput struct {
	Body VersionResponse
}

// VersionHandler serves the daemon's build information.
type VersionHandler struct {
	Version   string
	Commit    string
	BuildDate string
}

// GetVersion returns the running daemon's version, commit, and build date.
func (h *VersionHandler) GetVersion(_ context.Context, _ *VersionInput) (*VersionOutput, error) {
	return &VersionOutput{
		Body: VersionResponse{
			Version:   h.Version,
			Commit:    h.Commit,
			BuildDate: h.BuildDate,
		},
	}, nil
}
