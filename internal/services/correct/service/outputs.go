package service

import (
	"context"
	"encoding/json"
	"sort"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

// LedgerOutputs reads finalized outputs back out of a ledger
type LedgerOutputs struct {
	Ledger domain.Ledger
}

var _ domain.OutputsPort = LedgerOutputs{}

// Outputs implements domain.OutputsPort. Rows that are not ok are skipped
func (l LedgerOutputs) Outputs(ctx context.Context, batchID string) ([]domain.Output, error) {
	rows, err := l.Ledger.Load(ctx, batchID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Output, 0, len(rows))
	for id, e := range rows {
		if e.Status != domain.StatusOK || len(e.Output) == 0 {
			continue
		}
		var o domain.Output
		if err := json.Unmarshal(e.Output, &o); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "ledger output %s", id)
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UttID < out[j].UttID })
	return out, nil
}
