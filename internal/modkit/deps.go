// Package modkit wires shared dependencies into service modules
package modkit

import (
	"github.com/LetsGoKDH/taps/internal/modkit/repokit"
	"github.com/LetsGoKDH/taps/internal/platform/config"
	"github.com/LetsGoKDH/taps/internal/platform/events"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	"github.com/LetsGoKDH/taps/internal/platform/store"
)

// Deps holds process wide dependencies handed to modules
// PG and CH are nil when the backend is not configured
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Events  events.Sink
	Metrics *metrics.Metrics
}

// FromStore copies the opened backends into deps
func (d Deps) FromStore(s *store.Store) Deps {
	if s == nil {
		return d
	}
	d.PG = s.PG
	d.CH = s.CH
	return d
}

// Defaults fills optional fields with inert implementations
func (d Deps) Defaults() Deps {
	if d.Events == nil {
		d.Events = events.Discard{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Default
	}
	return d
}
