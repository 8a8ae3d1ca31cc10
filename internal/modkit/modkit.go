package modkit

import (
	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
)

// Module is the surface every service module exposes
type Module interface {
	// Name is used in logs
	Name() string
	// Ports returns the module's port set for cross wiring
	Ports() any
	// MountRoutes attaches http routes, modules without routes do nothing
	MountRoutes(r phttp.Router)
}
