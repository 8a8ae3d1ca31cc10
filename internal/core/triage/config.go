package triage

import (
	"github.com/LetsGoKDH/taps/internal/core/span"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
)

// Config holds the cut points and heuristic weights
type Config struct {
	// Cuts are percentile boundaries RED|ORANGE|YELLOW|GREEN, ascending.
	// Both scales are cut the same way
	Cuts           []float64            `yaml:"cuts"`
	CompressionMax float64              `yaml:"compression_max"`
	NgramRepeat    int                  `yaml:"ngram_repeat"`
	MinRunes       int                  `yaml:"min_runes"`
	Weights        map[span.Tag]float64 `yaml:"weights"`
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Cuts:           []float64{0.03, 0.15, 0.40},
		CompressionMax: 4.0,
		NgramRepeat:    3,
		MinRunes:       2,
		Weights: map[span.Tag]float64{
			span.TagURL:     2,
			span.TagForeign: 1,
			span.TagNumeric: 0.5,
			span.TagOOV:     1,
			span.TagIdiom:   1,
			span.TagNoise:   2,
		},
	}
}

// Validate checks cut ordering
func (c Config) Validate() error {
	if len(c.Cuts) != 3 || !(0 <= c.Cuts[0] && c.Cuts[0] <= c.Cuts[1] && c.Cuts[1] <= c.Cuts[2] && c.Cuts[2] <= 1) {
		return perr.InvalidArgf("triage: cuts must be three ascending values in [0,1], got %v", c.Cuts)
	}
	return nil
}
