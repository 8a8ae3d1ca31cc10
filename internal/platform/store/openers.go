package store

import (
	"context"
	"time"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	chx "github.com/LetsGoKDH/taps/internal/platform/store/ch"
	"github.com/LetsGoKDH/taps/internal/platform/store/pg"

	"github.com/felixgeelhaar/fortify/retry"
)

// openPG opens the pool and publishes the adapter only once a ping succeeds
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  appName(cfg.AppName, s.role),
	}, tracer, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "pg open")
	}

	attempts := cfg.PG.ConnectRetries
	if attempts <= 0 {
		attempts = 6
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  150 * time.Millisecond,
		BackoffPolicy: retry.BackoffExponential,
	})
	_, err = r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return struct{}{}, p.Pool.Ping(toCtx)
	})
	if err != nil {
		p.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "postgres ping failed after %d attempts", attempts)
	}
	s.Log.Info().Int32("max_conns", cfg.PG.MaxConns).Msg("postgres ready")
	return newPGAdapter(p), nil
}

func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	role := s.role
	if role == "" {
		role = cfg.AppName
	}
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: role})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "clickhouse open")
	}
	return newCHAdapter(c), nil
}

func appName(app, role string) string {
	if role == "" {
		return app
	}
	return app + "-" + role
}
