package main

import (
	"time"

	phttp "github.com/LetsGoKDH/taps/internal/platform/net/http"
	"github.com/LetsGoKDH/taps/internal/platform/net/middleware"
	cdomain "github.com/LetsGoKDH/taps/internal/services/correct/domain"
	cmod "github.com/LetsGoKDH/taps/internal/services/correct/module"
	resmod "github.com/LetsGoKDH/taps/internal/services/resolutions/module"
	rvmod "github.com/LetsGoKDH/taps/internal/services/review/module"
	rvservice "github.com/LetsGoKDH/taps/internal/services/review/service"
	rwmod "github.com/LetsGoKDH/taps/internal/services/rewriter/module"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr, outputs, batchID string
		slow                   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review api",
		Long: `Serve open issues and record resolutions over HTTP.

Issues come from --outputs when given, otherwise from the outputs the ledger
holds for --batch-id (TAPS_REVIEW_BATCH_ID).

Routes:
  GET  /v1/issues?utt_id=
  POST /v1/issues/{id}/resolution
  GET  /v1/resolutions/{id}
  GET  /healthz
  GET  /metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, "serve")
			if err != nil {
				return err
			}
			defer a.Close()

			var outs cdomain.OutputsPort
			if outputs != "" {
				rows, err := readOutputs(outputs)
				if err != nil {
					return err
				}
				outs = rvservice.StaticOutputs(rows)
			} else {
				// the runner is built only for its ledger, nothing is rewritten
				rw, err := rwmod.New(a.deps, rwmod.Options{Adapter: rwmod.AdapterStatic})
				if err != nil {
					return err
				}
				cm, err := cmod.New(ctx, a.deps, rw.Rewriter(), cmod.FromConfig(a.cfg))
				if err != nil {
					return err
				}
				defer cm.Close()
				outs = cm.Outputs()
			}

			rm, err := resmod.New(ctx, a.deps, resmod.FromConfig(a.cfg))
			if err != nil {
				return err
			}
			defer func() {
				if err := rm.Close(); err != nil {
					a.log.Error().Err(err).Msg("failed to close resolutions")
				}
			}()

			opts := rvmod.FromConfig(a.cfg)
			if batchID != "" {
				opts.BatchID = batchID
			}
			review := rvmod.New(a.deps, outs, rm.Resolutions(), opts)

			srv := phttp.NewServer(addr, func(m *chi.Mux) {
				m.Use(middleware.Heartbeat("/healthz"))
				m.Use(middleware.CORS(middleware.CORSOptions{}))
				m.Use(middleware.Defaults(slow)...)
			})
			r := srv.Router()
			r.Handle("/metrics", promhttp.Handler())
			r.Route("/v1", func(v1 phttp.Router) {
				review.MountRoutes(v1)
			})

			a.log.Info().Str("addr", srv.Addr()).Str("batch_id", opts.BatchID).Msg("review api starting")
			return srv.Run(ctx)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&addr, "addr", ":8080", "listen address")
	fl.StringVar(&outputs, "outputs", "", "serve issues from an outputs jsonl instead of the ledger")
	fl.StringVar(&batchID, "batch-id", "", "ledger batch whose issues are served")
	fl.DurationVar(&slow, "slow", 500*time.Millisecond, "access log slow request threshold")
	return cmd
}
