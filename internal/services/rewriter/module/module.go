// Package module wires a rewriter adapter behind the resilient client
package module

import (
	"github.com/LetsGoKDH/taps/internal/modkit"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/domain"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/openai"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/resilient"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/static"
)

// Ports exposed by the rewriter module
type Ports struct {
	Rewriter domain.Port
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New builds the configured adapter and wraps it
func New(deps modkit.Deps, opts Options) (*Module, error) {
	deps = deps.Defaults()

	inner, err := build(opts)
	if err != nil {
		return nil, err
	}
	client := resilient.New(inner, resilient.Config{
		Adapter:  opts.Adapter,
		Timeout:  opts.Timeout,
		Attempts: opts.Attempts,
		Backoff:  opts.Backoff,
	}, deps.Metrics)

	deps.Log.Info().
		Str("adapter", opts.Adapter).
		Dur("timeout", client.Timeout()).
		Msg("rewriter ready")

	return &Module{deps: deps, ports: Ports{Rewriter: client}}, nil
}

// Wrap puts an already built port behind the resilient client, used by tests
// and by callers that bring their own adapter
func Wrap(deps modkit.Deps, name string, p domain.Port, opts Options) *Module {
	deps = deps.Defaults()
	client := resilient.New(p, resilient.Config{
		Adapter:  name,
		Timeout:  opts.Timeout,
		Attempts: opts.Attempts,
		Backoff:  opts.Backoff,
	}, deps.Metrics)
	return &Module{deps: deps, ports: Ports{Rewriter: client}}
}

func build(opts Options) (domain.Port, error) {
	switch opts.Adapter {
	case AdapterOpenAI:
		o := []openai.Option{
			openai.WithHTTPTimeout(opts.HTTPTimeout),
			openai.WithTemperature(opts.Temperature),
			openai.WithMaxTokens(int64(opts.MaxTokens)),
		}
		if opts.BaseURL != "" {
			o = append(o, openai.WithBaseURL(opts.BaseURL))
		}
		a, err := openai.New(opts.APIKey, opts.Model, o...)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "rewriter: openai adapter")
		}
		return a, nil
	case AdapterStatic, "":
		if opts.TablePath == "" {
			t, _ := static.New(nil)
			return t, nil
		}
		t, err := static.Load(opts.TablePath)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "rewriter: static table")
		}
		return t, nil
	}
	return nil, perr.InvalidArgf("rewriter: unknown adapter %q", opts.Adapter)
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "rewriter" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Rewriter returns the guarded port
func (m *Module) Rewriter() domain.Port { return m.ports.Rewriter }

// MountRoutes satisfies modkit.Module, the rewriter has no routes
func (m *Module) MountRoutes(phttp.Router) {}
