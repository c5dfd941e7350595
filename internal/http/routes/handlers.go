package routes

import (
	"context"

	"github.com/wledfleet/wledd/internal/http/handlers"
)

// Handlers aggregates all handler implementations for route registration.
type Handlers struct {
	HealthCheck func(ctx context.Context, input *handlers.HealthInput) (*handlers.HealthOutput, error)
	Version     *handlers.VersionHandler
	Device      handlers.DeviceHandlers
	Fleet       handlers.FleetHandlers
}
