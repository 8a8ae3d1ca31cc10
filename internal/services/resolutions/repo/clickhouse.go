// Package repo holds the resolution stores: clickhouse, JSONL file and memory
package repo

import (
	"context"
	"time"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/store"
	"github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
)

// Table is the clickhouse table name
const Table = "issue_resolutions"

// Schema is the clickhouse ddl, rows are only ever inserted
const Schema = `
CREATE TABLE IF NOT EXISTS issue_resolutions (
	issue_id        String,
	utt_id          String,
	resolver        LowCardinality(String),
	reviewer        String,
	candidate_index Nullable(Int32),
	final_text      String,
	modified        UInt8,
	resolved_at     DateTime64(3, 'UTC'),
	seq             UInt64
) ENGINE = MergeTree
ORDER BY (issue_id, resolved_at, seq)`

const latestSQL = `
SELECT
	issue_id,
	argMax(utt_id, (resolved_at, seq)),
	argMax(resolver, (resolved_at, seq)),
	argMax(reviewer, (resolved_at, seq)),
	argMax(candidate_index, (resolved_at, seq)),
	argMax(final_text, (resolved_at, seq)),
	argMax(modified, (resolved_at, seq)),
	max(resolved_at),
	argMax(seq, (resolved_at, seq))
FROM issue_resolutions
WHERE issue_id IN (?)
GROUP BY issue_id`

// Clickhouse stores resolutions in issue_resolutions
type Clickhouse struct {
	CH store.Clickhouse
}

var _ domain.Store = (*Clickhouse)(nil)

// NewClickhouse returns the clickhouse store
func NewClickhouse(ch store.Clickhouse) *Clickhouse {
	if ch == nil {
		panic("resolutions.Clickhouse requires a non nil client")
	}
	return &Clickhouse{CH: ch}
}

// EnsureSchema creates the table when missing
func (c *Clickhouse) EnsureSchema(ctx context.Context) error {
	if err := c.CH.Exec(ctx, Schema); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "resolutions: ensure issue_resolutions")
	}
	return nil
}

// Append implements domain.Store
func (c *Clickhouse) Append(ctx context.Context, r domain.Resolution) error {
	var idx *int32
	if r.CandidateIndex != nil {
		v := int32(*r.CandidateIndex)
		idx = &v
	}
	var modified uint8
	if r.Modified {
		modified = 1
	}
	row := []any{r.IssueID, r.UttID, string(r.Resolver), r.Reviewer, idx, r.FinalText, modified, r.ResolvedAt.UTC(), r.Seq}
	if err := c.CH.Insert(ctx, Table, [][]any{row}); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "resolutions: insert")
	}
	return nil
}

// Latest implements domain.Store
func (c *Clickhouse) Latest(ctx context.Context, issueID string) (domain.Resolution, bool, error) {
	got, err := c.LatestMany(ctx, []string{issueID})
	r, ok := got[issueID]
	return r, ok, err
}

// LatestMany implements domain.Store
func (c *Clickhouse) LatestMany(ctx context.Context, issueIDs []string) (map[string]domain.Resolution, error) {
	out := make(map[string]domain.Resolution, len(issueIDs))
	if len(issueIDs) == 0 {
		return out, nil
	}
	rows, err := c.CH.Query(ctx, latestSQL, issueIDs)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "resolutions: query latest")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r        domain.Resolution
			resolver string
			idx      *int32
			modified uint8
			at       time.Time
		)
		if err := rows.Scan(&r.IssueID, &r.UttID, &resolver, &r.Reviewer, &idx, &r.FinalText, &modified, &at, &r.Seq); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "resolutions: scan latest")
		}
		r.Resolver = domain.Resolver(resolver)
		r.Modified = modified == 1
		r.ResolvedAt = at.UTC()
		if idx != nil {
			v := int(*idx)
			r.CandidateIndex = &v
		}
		out[r.IssueID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "resolutions: rows")
	}
	return out, nil
}
