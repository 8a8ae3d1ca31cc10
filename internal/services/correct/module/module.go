// Package module wires the batch runner: finder, engine, ledger and lease
package module

import (
	"context"
	"io"

	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/core/rulepack"
	"github.com/LetsGoKDH/taps/internal/core/span"
	"github.com/LetsGoKDH/taps/internal/modkit"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
	"github.com/LetsGoKDH/taps/internal/services/correct/guardrails"
	"github.com/LetsGoKDH/taps/internal/services/correct/repo"
	"github.com/LetsGoKDH/taps/internal/services/correct/service"
	rwdomain "github.com/LetsGoKDH/taps/internal/services/rewriter/domain"
)

// Ports defines the correct module ports
type Ports struct {
	Runner  domain.RunnerPort
	Outputs domain.OutputsPort
}

// Module implements modkit.Module
type Module struct {
	deps    modkit.Deps
	ports   Ports
	svc     *service.Service
	closers []io.Closer
}

// New builds the runner. A pg ledger or lease needs deps.PG; the tables are
// created when missing
func New(ctx context.Context, deps modkit.Deps, rw rwdomain.Port, opts Options) (*Module, error) {
	deps = deps.Defaults()

	pack, err := rulepack.LoadFile(opts.RulePack)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "correct: rule pack")
	}
	policy, tri, err := LoadPolicy(opts.PolicyFile)
	if err != nil {
		return nil, err
	}
	engine, err := decision.NewEngine(policy)
	if err != nil {
		return nil, err
	}
	finder := span.New(pack, span.Options{ContextWidth: opts.ContextWidth})

	m := &Module{deps: deps}
	ledger, err := m.ledger(ctx, opts)
	if err != nil {
		return nil, err
	}

	svc := service.New(finder, engine, rw, ledger, service.Config{
		Workers:       opts.Workers,
		RewriterSlots: opts.RewriterSlots,
		K:             opts.K,
		SentenceMode:  opts.SentenceMode,
		Timeouts: guardrails.Timeouts{
			Run:       opts.RunTimeout,
			Utterance: opts.UtteranceTimeout,
			Rewrite:   opts.RewriteTimeout,
			Ledger:    opts.LedgerTimeout,
		},
		Triage: tri,
	}).WithEvents(deps.Events).WithMetrics(deps.Metrics)

	if opts.Leases && deps.PG != nil {
		if _, err := deps.PG.Exec(ctx, guardrails.LeaseTable); err != nil {
			m.Close()
			return nil, perr.FromPostgres(err, "correct: ensure correct_run_leases")
		}
		svc.WithLease(guardrails.MakeAdvisoryLease(deps.PG, opts.LeaseTTL))
	}

	m.svc = svc
	m.ports = Ports{Runner: svc, Outputs: service.LedgerOutputs{Ledger: ledger}}

	deps.Log.Info().
		Str("ledger", opts.Ledger).
		Int("workers", svc.Cfg.Workers).
		Int("k", svc.Cfg.K).
		Bool("sentence_mode", opts.SentenceMode).
		Str("policy_version", policy.Version).
		Msg("correct ready")
	return m, nil
}

func (m *Module) ledger(ctx context.Context, opts Options) (domain.Ledger, error) {
	switch opts.Ledger {
	case LedgerPG:
		if m.deps.PG == nil {
			return nil, perr.InvalidArgf("correct: pg ledger needs an open postgres store")
		}
		pg := repo.NewPostgres(m.deps.PG, repo.NewPG())
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	case LedgerFile:
		f, err := repo.OpenFile(opts.LedgerFile)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, f)
		return f, nil
	case LedgerMemory, "":
		return repo.NewMemory(), nil
	}
	return nil, perr.InvalidArgf("correct: unknown ledger %q", opts.Ledger)
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "correct" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Runner returns the batch runner
func (m *Module) Runner() domain.RunnerPort { return m.ports.Runner }

// Outputs returns the stored outputs reader
func (m *Module) Outputs() domain.OutputsPort { return m.ports.Outputs }

// Service exposes the configured runner
func (m *Module) Service() *service.Service { return m.svc }

// MountRoutes satisfies modkit.Module, the runner has no routes
func (m *Module) MountRoutes(phttp.Router) {}

// Close releases file handles held by the ledger
func (m *Module) Close() {
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			m.deps.Log.Warn().Err(err).Msg("correct: close")
		}
	}
	m.closers = nil
}
