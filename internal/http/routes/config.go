// Package routes provides shared route registration for the wledd HTTP API.
// The main server and the OpenAPI output use the same route definitions, so
// the generated document stays in sync with the implementation.
package routes

import (
	"github.com/danielgtaylor/huma/v2"
)

// NewHumaConfig creates the shared Huma configuration for the API.
func NewHumaConfig(version, baseURL string) huma.Config {
	cfg := huma.DefaultConfig("wledd API", version)
	cfg.Info.Description = "REST API for managing a fleet of WLED controllers via the wledd daemon."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Devices", Description: "Device registry and live control"},
		{Name: "Fleet", Description: "Fleet lifecycle (pause, resume, status)"},
		{Name: "Health", Description: "Service health"},
		{Name: "Version", Description: "Build information"},
	}

	return cfg
}
