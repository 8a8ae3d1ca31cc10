// Package decision chooses, per span or sentence, whether a proposed rewrite
// is accepted, escalated to review or not needed
//
// Rules are evaluated in order and the first match wins. Hard guardrails come
// before any acceptance rule
package decision

import (
	"regexp"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/core/langhint"
	"github.com/LetsGoKDH/taps/internal/core/span"
	"github.com/LetsGoKDH/taps/internal/core/triage"

	"github.com/antzucaro/matchr"
)

// Action is the per span outcome
type Action string

const (
	Accept   Action = "accept"
	Escalate Action = "escalate"
	Pass     Action = "pass"
)

// Reason codes explain a verdict in audit records
const (
	ReasonGuardURL       = "guard-url"
	ReasonGuardIdiom     = "guard-idiom"
	ReasonNoCandidates   = "no-candidates"
	ReasonEmptyRecommend = "empty-recommendation"
	ReasonSame           = "same-as-source"
	ReasonDistance       = "distance-ceiling"
	ReasonNumeric        = "numeric-accept"
	ReasonForeign        = "foreign-accept"
	ReasonLexical        = "lexical-review"
	ReasonSentence       = "sentence-accept"
	ReasonDefault        = "default-review"
)

// Input is everything one decision may look at
type Input struct {
	Tag           span.Tag
	Bucket        triage.Bucket
	Candidates    []candidate.Candidate // ranked
	Source        string
	Recommended   string
	URLInSentence bool
	Whole         bool // whole sentence proposal rather than a span
}

// Verdict is the chosen action with the figures that led to it
type Verdict struct {
	Action   Action  `json:"action"`
	Reason   string  `json:"reason"`
	Margin   float64 `json:"margin"`
	Distance float64 `json:"distance"`
}

// Engine applies a Policy. It holds no mutable state
type Engine struct {
	policy Policy
}

// NewEngine validates p and returns an engine over it
func NewEngine(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: p}, nil
}

// Policy returns a copy of the engine policy
func (e *Engine) Policy() Policy { return e.policy }

var punctOnly = regexp.MustCompile(`^[\s.,!?;:\-_'"()\[\]{}]*$`)

// Decide evaluates the rules for one span or sentence
func (e *Engine) Decide(in Input) Verdict {
	p := e.policy
	v := Verdict{Margin: candidate.Margin(in.Candidates)}

	switch {
	case in.Tag == span.TagURL:
		return v.with(Escalate, ReasonGuardURL)
	case in.Tag == span.TagIdiom:
		return v.with(Escalate, ReasonGuardIdiom)
	case len(in.Candidates) == 0:
		return v.with(Escalate, ReasonNoCandidates)
	case punctOnly.MatchString(in.Recommended):
		return v.with(Escalate, ReasonEmptyRecommend)
	case in.Recommended == in.Source:
		return v.with(Pass, ReasonSame)
	}

	v.Distance = Distance(in.Source, in.Recommended)
	ceiling := p.SpanMaxDistance
	if in.Whole {
		ceiling = p.SentenceMaxDistance
	}
	if v.Distance > ceiling {
		return v.with(Escalate, ReasonDistance)
	}

	if in.Whole {
		r := p.Sentence
		if r.allows(in.Bucket) && !in.URLInSentence && v.Distance <= r.MaxDistance && v.Margin >= r.MinMargin {
			return v.with(Accept, ReasonSentence)
		}
		return v.with(Escalate, ReasonDefault)
	}

	switch in.Tag {
	case span.TagNumeric:
		r := p.Numeric
		if r.allows(in.Bucket) && v.Margin >= r.MinMargin && v.Distance <= r.MaxDistance {
			return v.with(Accept, ReasonNumeric)
		}
	case span.TagForeign:
		r := p.Foreign
		if r.allows(in.Bucket) && v.Margin >= r.MinMargin && v.Distance <= r.MaxDistance &&
			!langhint.IntroducesMixed(in.Source, in.Recommended) {
			return v.with(Accept, ReasonForeign)
		}
	case span.TagOOV, span.TagNoise:
		return v.with(Escalate, ReasonLexical)
	}
	return v.with(Escalate, ReasonDefault)
}

func (v Verdict) with(a Action, reason string) Verdict {
	v.Action, v.Reason = a, reason
	return v
}

// Distance is the rune Levenshtein distance over the longer length, in [0,1]
func Distance(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	n := max(la, lb)
	if n == 0 {
		return 0
	}
	return float64(matchr.Levenshtein(a, b)) / float64(n)
}
