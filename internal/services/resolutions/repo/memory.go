package repo

import (
	"context"
	"sync"

	"github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
)

// Memory keeps every record in process
type Memory struct {
	mu   sync.RWMutex
	rows []domain.Resolution
}

var _ domain.Store = (*Memory)(nil)

// NewMemory returns an empty store
func NewMemory() *Memory { return &Memory{} }

// Append implements domain.Store
func (m *Memory) Append(ctx context.Context, r domain.Resolution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.rows = append(m.rows, r)
	m.mu.Unlock()
	return nil
}

// Latest implements domain.Store
func (m *Memory) Latest(ctx context.Context, issueID string) (domain.Resolution, bool, error) {
	got, err := m.LatestMany(ctx, []string{issueID})
	r, ok := got[issueID]
	return r, ok, err
}

// LatestMany implements domain.Store
func (m *Memory) LatestMany(_ context.Context, issueIDs []string) (map[string]domain.Resolution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latest(m.rows, issueIDs), nil
}

// All returns every record in append order
func (m *Memory) All() []domain.Resolution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Resolution(nil), m.rows...)
}

// latest folds rows down to the superseding record per wanted issue
func latest(rows []domain.Resolution, issueIDs []string) map[string]domain.Resolution {
	want := make(map[string]struct{}, len(issueIDs))
	for _, id := range issueIDs {
		want[id] = struct{}{}
	}
	out := make(map[string]domain.Resolution, len(issueIDs))
	for _, r := range rows {
		if _, ok := want[r.IssueID]; !ok {
			continue
		}
		if prev, ok := out[r.IssueID]; !ok || r.Newer(prev) {
			out[r.IssueID] = r
		}
	}
	return out
}
