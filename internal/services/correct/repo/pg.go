// Package repo provides the progress ledger backends for the runner
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LetsGoKDH/taps/internal/modkit/repokit"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/store"
	ptime "github.com/LetsGoKDH/taps/internal/platform/time"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

// ProgressTable is the ddl the postgres ledger expects
const ProgressTable = `
create table if not exists correct_progress (
	batch_id   text not null,
	utt_id     text not null,
	status     text not null check (status in ('running', 'ok', 'error')),
	input_hash text not null,
	output     jsonb,
	error      text,
	updated_at timestamptz not null default now(),
	primary key (batch_id, utt_id)
)`

type (
	// PG is a Postgres binder for domain.LedgerRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &queries{q: q} }

// Load returns every row of a batch
func (r *queries) Load(ctx context.Context, batchID string) ([]domain.Entry, error) {
	return store.Many(ctx, r.q, func(row store.Row) (domain.Entry, error) {
		var (
			e      = domain.Entry{BatchID: batchID}
			status string
			output string
		)
		if err := row.Scan(&e.UttID, &status, &e.InputHash, &output, &e.Error, &e.UpdatedAt); err != nil {
			return domain.Entry{}, err
		}
		e.Status = domain.Status(status)
		if output != "" {
			e.Output = json.RawMessage(output)
		}
		return e, nil
	}, `
		SELECT utt_id, status, input_hash, coalesce(output::text, ''), coalesce(error, ''), updated_at
		FROM correct_progress
		WHERE batch_id = $1
		ORDER BY utt_id
	`, batchID)
}

// Upsert writes the latest state of one utterance (idempotent)
// A finalized row is never downgraded to running by a stale writer with the same hash
func (r *queries) Upsert(ctx context.Context, e domain.Entry) error {
	var output any
	if len(e.Output) > 0 {
		output = string(e.Output)
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO correct_progress (batch_id, utt_id, status, input_hash, output, error, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, NULLIF($6, ''), $7)
		ON CONFLICT (batch_id, utt_id) DO UPDATE SET
			status = excluded.status,
			input_hash = excluded.input_hash,
			output = excluded.output,
			error = excluded.error,
			updated_at = excluded.updated_at
		WHERE NOT (
			correct_progress.status = 'ok'
			AND excluded.status = 'running'
			AND correct_progress.input_hash = excluded.input_hash
		)
	`, e.BatchID, e.UttID, string(e.Status), e.InputHash, output, e.Error, e.UpdatedAt.UTC())
	return err
}

// Postgres adapts the bound repo to domain.Ledger, one transaction per call
type Postgres struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.LedgerRepo]
	Now    func() time.Time
}

var _ domain.Ledger = (*Postgres)(nil)

// NewPostgres returns the postgres ledger
func NewPostgres(db repokit.TxRunner, b repokit.Binder[domain.LedgerRepo]) *Postgres {
	if db == nil {
		panic("correct.Postgres requires a non nil TxRunner")
	}
	if b == nil {
		b = NewPG()
	}
	return &Postgres{DB: db, Binder: b, Now: ptime.Now}
}

// EnsureSchema creates the ledger table when missing
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.DB.Exec(ctx, ProgressTable)
	return perr.FromPostgres(err, "correct: ensure correct_progress")
}

// Load implements domain.Ledger
func (p *Postgres) Load(ctx context.Context, batchID string) (map[string]domain.Entry, error) {
	var rows []domain.Entry
	err := p.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		rows, err = p.Binder.Bind(q).Load(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, perr.FromPostgres(err, "correct: load ledger")
	}
	out := make(map[string]domain.Entry, len(rows))
	for _, e := range rows {
		out[e.UttID] = e
	}
	return out, nil
}

// Start implements domain.Ledger
func (p *Postgres) Start(ctx context.Context, batchID, uttID, hash string) error {
	return p.upsert(ctx, domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusRunning, InputHash: hash})
}

// Finish implements domain.Ledger
func (p *Postgres) Finish(ctx context.Context, batchID, uttID, hash string, output json.RawMessage) error {
	return p.upsert(ctx, domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusOK, InputHash: hash, Output: output})
}

// Fail implements domain.Ledger
func (p *Postgres) Fail(ctx context.Context, batchID, uttID, hash, errText string) error {
	return p.upsert(ctx, domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusError, InputHash: hash, Error: errText})
}

func (p *Postgres) upsert(ctx context.Context, e domain.Entry) error {
	e.UpdatedAt = p.Now()
	err := p.DB.Tx(ctx, func(q repokit.Queryer) error {
		return p.Binder.Bind(q).Upsert(ctx, e)
	})
	return perr.FromPostgres(err, "correct: write ledger")
}
