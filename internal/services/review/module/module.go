// Package module wires the review service and its routes
package module

import (
	"github.com/LetsGoKDH/taps/internal/modkit"
	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	cdomain "github.com/LetsGoKDH/taps/internal/services/correct/domain"
	resdomain "github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
	reviewhttp "github.com/LetsGoKDH/taps/internal/services/review/http"
	"github.com/LetsGoKDH/taps/internal/services/review/service"
)

// Ports defines the review module ports
type Ports struct {
	Review *service.Service
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New builds the review module over stored outputs and the resolution log
func New(deps modkit.Deps, outs cdomain.OutputsPort, res resdomain.Port, opts Options) *Module {
	deps = deps.Defaults()
	return &Module{deps: deps, ports: Ports{Review: service.New(outs, res, opts.BatchID)}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "review" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Service returns the review service
func (m *Module) Service() *service.Service { return m.ports.Review }

// MountRoutes mounts the review api on r
func (m *Module) MountRoutes(r phttp.Router) { reviewhttp.Register(r, m.ports.Review) }
