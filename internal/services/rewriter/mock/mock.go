// Package mock is a scripted rewriter for tests
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/domain"
)

// Rewriter answers from Table keyed by span text, or from Fn when set
// Delay simulates a slow model and honors cancellation
type Rewriter struct {
	Table map[string][]candidate.Candidate
	Fn    func(ctx context.Context, req domain.Request) ([]candidate.Candidate, error)
	Delay time.Duration
	Err   error

	mu    sync.Mutex
	calls []domain.Request
}

var _ domain.Port = (*Rewriter)(nil)

// Propose records the request and answers it
func (m *Rewriter) Propose(ctx context.Context, req domain.Request) ([]candidate.Candidate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Fn != nil {
		return m.Fn(ctx, req)
	}
	cs, ok := m.Table[req.Span]
	if !ok {
		return nil, domain.ErrEmpty
	}
	return candidate.Rank(cs, req.K), nil
}

// Calls returns a copy of every request seen so far
func (m *Rewriter) Calls() []domain.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Request(nil), m.calls...)
}
