package decision

import (
	"github.com/LetsGoKDH/taps/internal/core/triage"
	"github.com/LetsGoKDH/taps/internal/core/version"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
)

// Rule is the acceptance window for one tag
type Rule struct {
	Buckets     []triage.Bucket `yaml:"buckets"`
	MinMargin   float64         `yaml:"min_margin"`
	MaxDistance float64         `yaml:"max_distance"`
}

func (r Rule) allows(b triage.Bucket) bool {
	for _, x := range r.Buckets {
		if x == b {
			return true
		}
	}
	return false
}

// Policy is the full set of thresholds. Build it once and pass it by value
type Policy struct {
	Version string `yaml:"version"`

	// hard ceilings on normalized edit distance
	SpanMaxDistance     float64 `yaml:"span_max_distance"`
	SentenceMaxDistance float64 `yaml:"sentence_max_distance"`

	Numeric  Rule `yaml:"numeric"`
	Foreign  Rule `yaml:"foreign"`
	Sentence Rule `yaml:"sentence"`
}

// DefaultPolicy returns the shipped thresholds
func DefaultPolicy() Policy {
	return Policy{
		Version:             version.Policy(),
		SpanMaxDistance:     0.35,
		SentenceMaxDistance: 0.18,
		Numeric: Rule{
			Buckets:     []triage.Bucket{triage.Yellow, triage.Green},
			MinMargin:   0.25,
			MaxDistance: 0.20,
		},
		Foreign: Rule{
			Buckets:     []triage.Bucket{triage.Green},
			MinMargin:   0.35,
			MaxDistance: 0.15,
		},
		Sentence: Rule{
			Buckets:     []triage.Bucket{triage.Green},
			MaxDistance: 0.18,
		},
	}
}

// Validate rejects thresholds outside [0,1] and unknown buckets
func (p Policy) Validate() error {
	if p.Version == "" {
		return perr.InvalidArgf("policy: version is required")
	}
	for name, v := range map[string]float64{
		"span_max_distance":     p.SpanMaxDistance,
		"sentence_max_distance": p.SentenceMaxDistance,
		"numeric.min_margin":    p.Numeric.MinMargin,
		"numeric.max_distance":  p.Numeric.MaxDistance,
		"foreign.min_margin":    p.Foreign.MinMargin,
		"foreign.max_distance":  p.Foreign.MaxDistance,
		"sentence.max_distance": p.Sentence.MaxDistance,
	} {
		if v < 0 || v > 1 {
			return perr.WithField(perr.InvalidArgf("policy: %s=%v outside [0,1]", name, v), name)
		}
	}
	for _, r := range []Rule{p.Numeric, p.Foreign, p.Sentence} {
		for _, b := range r.Buckets {
			if !b.Valid() {
				return perr.InvalidArgf("policy: unknown bucket %q", b)
			}
		}
	}
	return nil
}
