// Package module wires the resolution log to its configured backend
package module

import (
	"context"
	"io"

	"github.com/LetsGoKDH/taps/internal/modkit"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	"github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
	"github.com/LetsGoKDH/taps/internal/services/resolutions/repo"
	"github.com/LetsGoKDH/taps/internal/services/resolutions/service"
)

// Ports defines the resolutions module ports
type Ports struct {
	Resolutions domain.Port
}

// Module implements modkit.Module
type Module struct {
	deps   modkit.Deps
	ports  Ports
	closer io.Closer
}

// New opens the backend named in opts. The clickhouse table is created when missing
func New(ctx context.Context, deps modkit.Deps, opts Options) (*Module, error) {
	deps = deps.Defaults()
	m := &Module{deps: deps}

	var st domain.Store
	switch opts.Backend {
	case BackendClickhouse:
		if deps.CH == nil {
			return nil, perr.InvalidArgf("resolutions: ch backend needs an open clickhouse store")
		}
		ch := repo.NewClickhouse(deps.CH)
		if err := ch.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		st = ch
	case BackendFile:
		f, err := repo.OpenFile(opts.File)
		if err != nil {
			return nil, err
		}
		m.closer = f
		st = f
	case BackendMemory, "":
		st = repo.NewMemory()
	default:
		return nil, perr.InvalidArgf("resolutions: unknown backend %q", opts.Backend)
	}

	m.ports = Ports{Resolutions: service.New(st, deps.Events, deps.Metrics)}
	deps.Log.Info().Str("backend", opts.Backend).Msg("resolutions ready")
	return m, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "resolutions" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Resolutions returns the port
func (m *Module) Resolutions() domain.Port { return m.ports.Resolutions }

// MountRoutes satisfies modkit.Module, routes live in the review module
func (m *Module) MountRoutes(phttp.Router) {}

// Close releases the file backend
func (m *Module) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}
