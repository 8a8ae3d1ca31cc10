package guardrails

import (
	"context"
	"errors"
	"time"

	"github.com/LetsGoKDH/taps/internal/modkit/repokit"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/store"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

// ErrLeaseHeld signals another runner owns the batch
var ErrLeaseHeld = perr.Conflictf("correct: batch lease already held")

// LeaseTable is the ddl the postgres lease expects
const LeaseTable = `
create table if not exists correct_run_leases (
	batch_id    text primary key,
	holder      text not null,
	acquired_at timestamptz not null default now()
)`

// MakeAdvisoryLease claims batch_id in correct_run_leases, runs do, then
// releases the row. A lease older than ttl is treated as abandoned and taken over
func MakeAdvisoryLease(db repokit.TxRunner, ttl time.Duration) domain.LeaseFunc {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return func(ctx context.Context, batchID, holder string, do func(context.Context) error) error {
		var claimed bool
		err := db.Tx(ctx, func(q repokit.Queryer) error {
			_, err := store.One(ctx, q, func(row store.Row) (bool, error) {
				var ok bool
				err := row.Scan(&ok)
				return ok, err
			}, `
				insert into correct_run_leases (batch_id, holder, acquired_at)
				values ($1, $2, now())
				on conflict (batch_id) do update
					set holder = excluded.holder, acquired_at = now()
					where correct_run_leases.acquired_at < now() - make_interval(secs => $3)
				returning true
			`, batchID, holder, ttl.Seconds())
			switch {
			case err == nil:
				claimed = true
				return nil
			case !perr.IsCode(err, perr.ErrorCodeNotFound):
				return err
			}
			owner, err := store.Scalar[string](ctx, q, `select holder from correct_run_leases where batch_id = $1`, batchID)
			if err == nil {
				logger.C(ctx).Warn().Str("batch_id", batchID).Str("holder", owner).Msg("correct: lease held")
			}
			return nil
		})
		if err != nil {
			return perr.FromPostgres(err, "correct: claim lease")
		}
		if !claimed {
			return ErrLeaseHeld
		}

		runErr := do(ctx)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		// a lease taken over after ttl affects no row
		if err := store.ExecOne(rctx, db, `delete from correct_run_leases where batch_id = $1 and holder = $2`, batchID, holder); err != nil {
			logger.C(ctx).Warn().Err(err).Str("batch_id", batchID).Msg("correct: release lease")
		}
		return runErr
	}
}

// NoLease runs do directly
func NoLease(ctx context.Context, _, _ string, do func(context.Context) error) error { return do(ctx) }

// IsLeaseHeld reports whether err is the held lease conflict
func IsLeaseHeld(err error) bool { return errors.Is(err, ErrLeaseHeld) }
