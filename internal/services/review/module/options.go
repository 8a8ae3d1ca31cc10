package module

import "github.com/LetsGoKDH/taps/internal/platform/config"

// Options holds configuration for the review module
type Options struct {
	// BatchID selects whose stored outputs the api serves
	BatchID string
}

// FromConfig reads TAPS_REVIEW_*
func FromConfig(cfg config.Conf) Options {
	return Options{BatchID: cfg.Prefix("TAPS_REVIEW_").MayString("BATCH_ID", "")}
}
