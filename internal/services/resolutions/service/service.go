// Package service records review resolutions and answers latest lookups
package service

import (
	"context"
	"sync"
	"time"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/events"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	ptime "github.com/LetsGoKDH/taps/internal/platform/time"
	"github.com/LetsGoKDH/taps/internal/platform/validate"
	"github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
)

// Service implements domain.Port
type Service struct {
	Store   domain.Store
	Events  events.Sink
	Metrics *metrics.Metrics
	Now     func() time.Time

	mu      sync.Mutex
	lastSeq uint64
}

var _ domain.Port = (*Service)(nil)

// New returns the service over st
func New(st domain.Store, sink events.Sink, m *metrics.Metrics) *Service {
	if st == nil {
		panic("resolutions.Service requires a non nil store")
	}
	if sink == nil {
		sink = events.Discard{}
	}
	if m == nil {
		m = metrics.Default
	}
	return &Service{Store: st, Events: sink, Metrics: m, Now: ptime.Now}
}

// Record validates and appends r. ResolvedAt defaults to now and Seq is
// always assigned here, increasing across calls and restarts
func (s *Service) Record(ctx context.Context, r domain.Resolution) error {
	if err := validate.Struct(r, perr.ErrorCodeInputValidation); err != nil {
		return err
	}
	if r.ResolvedAt.IsZero() {
		r.ResolvedAt = s.Now()
	}
	r.ResolvedAt = r.ResolvedAt.UTC()
	r.Seq = s.next()

	if err := s.Store.Append(ctx, r); err != nil {
		return err
	}
	s.Metrics.Resolutions.WithLabelValues(string(r.Resolver)).Inc()

	log := logger.C(ctx)
	log.Debug().Str("issue_id", r.IssueID).Str("resolver", string(r.Resolver)).Bool("modified", r.Modified).Msg("resolution recorded")
	if err := s.Events.Publish(ctx, events.TopicResolution, r.IssueID, r); err != nil {
		log.Warn().Err(err).Str("issue_id", r.IssueID).Msg("resolutions: publish")
	}
	return nil
}

// Latest implements domain.Port
func (s *Service) Latest(ctx context.Context, issueID string) (domain.Resolution, bool, error) {
	return s.Store.Latest(ctx, issueID)
}

// LatestMany implements domain.Port
func (s *Service) LatestMany(ctx context.Context, issueIDs []string) (map[string]domain.Resolution, error) {
	return s.Store.LatestMany(ctx, issueIDs)
}

// next is wall clock nanoseconds, bumped when the clock has not moved
func (s *Service) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := uint64(time.Now().UnixNano())
	if n <= s.lastSeq {
		n = s.lastSeq + 1
	}
	s.lastSeq = n
	return n
}
