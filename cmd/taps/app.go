package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/LetsGoKDH/taps/internal/modkit"
	"github.com/LetsGoKDH/taps/internal/platform/config"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/events"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	"github.com/LetsGoKDH/taps/internal/platform/store"
	cdomain "github.com/LetsGoKDH/taps/internal/services/correct/domain"
	cservice "github.com/LetsGoKDH/taps/internal/services/correct/service"
)

// app holds what every subcommand shares: env config, the root logger, the
// optional pg and clickhouse store and the kafka publisher
type app struct {
	cfg  config.Conf
	log  *logger.Logger
	st   *store.Store
	pub  *events.Publisher
	deps modkit.Deps
}

// openApp opens backends named by TAPS_PG_URL and TAPS_CH_URL; neither is
// required. role tags the backend connections
func openApp(ctx context.Context, role string) (*app, error) {
	root := config.New()
	l := logger.Get()

	st, err := store.Open(ctx, store.ConfigFromEnv(root.Prefix("TAPS_")), store.WithLogger(*l), store.WithRole(role))
	if err != nil {
		return nil, err
	}
	pub := events.New(events.ConfigFromEnv(root.Prefix("TAPS_")), metrics.Default)

	return &app{
		cfg: root,
		log: l,
		st:  st,
		pub: pub,
		deps: modkit.Deps{
			Log:     *l,
			Cfg:     root,
			Events:  pub,
			Metrics: metrics.Default,
		}.FromStore(st),
	}, nil
}

func (a *app) Close() {
	if err := a.pub.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close publisher")
	}
	if err := a.st.Close(context.Background()); err != nil {
		a.log.Error().Err(err).Msg("failed to close store")
	}
}

// writeFile streams fn into path, "-" means stdout
func writeFile(path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(os.Stdout)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readOutputs(path string) ([]cdomain.Output, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "open outputs %s", path)
	}
	defer f.Close()
	return cservice.ReadOutputs(f)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// batchName derives a batch id from an input path: utterances/day1.jsonl is day1
func batchName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
