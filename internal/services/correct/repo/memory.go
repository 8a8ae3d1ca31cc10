package repo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ptime "github.com/LetsGoKDH/taps/internal/platform/time"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

// Memory is an in process ledger for tests and one shot runs
type Memory struct {
	mu   sync.Mutex
	rows map[string]map[string]domain.Entry
	now  func() time.Time
}

var _ domain.Ledger = (*Memory)(nil)

// NewMemory returns an empty ledger
func NewMemory() *Memory {
	return &Memory{rows: map[string]map[string]domain.Entry{}, now: ptime.Now}
}

// Load implements domain.Ledger
func (m *Memory) Load(ctx context.Context, batchID string) (map[string]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Entry, len(m.rows[batchID]))
	for k, v := range m.rows[batchID] {
		out[k] = v
	}
	return out, nil
}

// Start implements domain.Ledger
func (m *Memory) Start(_ context.Context, batchID, uttID, hash string) error {
	m.put(domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusRunning, InputHash: hash})
	return nil
}

// Finish implements domain.Ledger
func (m *Memory) Finish(_ context.Context, batchID, uttID, hash string, output json.RawMessage) error {
	m.put(domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusOK, InputHash: hash, Output: output})
	return nil
}

// Fail implements domain.Ledger
func (m *Memory) Fail(_ context.Context, batchID, uttID, hash, errText string) error {
	m.put(domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusError, InputHash: hash, Error: errText})
	return nil
}

func (m *Memory) put(e domain.Entry) {
	e.UpdatedAt = m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.rows[e.BatchID]
	if b == nil {
		b = map[string]domain.Entry{}
		m.rows[e.BatchID] = b
	}
	b[e.UttID] = merge(b[e.UttID], e)
}

// merge keeps a finalized row when a stale writer tries to mark it running again
func merge(prev, next domain.Entry) domain.Entry {
	if prev.Status == domain.StatusOK && next.Status == domain.StatusRunning && prev.InputHash == next.InputHash {
		return prev
	}
	return next
}
