package store

import (
	"github.com/LetsGoKDH/taps/internal/platform/logger"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used by subclients
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// WithRole names the caller, usually the subcommand, in the clickhouse client
// info and the postgres application_name
func WithRole(role string) Option {
	return func(s *Store) error {
		s.role = role
		return nil
	}
}
