// Package static answers rewrite requests from a YAML lookup table
// It backs offline runs and demos where no model endpoint is available
package static

import (
	"context"
	"fmt"
	"os"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/core/normalize"
	"github.com/LetsGoKDH/taps/internal/platform/config"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/domain"
)

// Entry maps one span text to its candidates
type Entry struct {
	Kind       candidate.Task        `yaml:"kind"`
	Span       string                `yaml:"span"`
	Candidates []candidate.Candidate `yaml:"candidates"`
}

type file struct {
	Entries []Entry `yaml:"entries"`
}

type key struct {
	kind candidate.Task
	span string
}

// Table is an immutable lookup keyed by kind and normalized span
type Table struct {
	m map[key][]candidate.Candidate
}

var _ domain.Port = (*Table)(nil)

// New builds a table from entries; an empty kind means span
func New(entries []Entry) (*Table, error) {
	t := &Table{m: make(map[key][]candidate.Candidate, len(entries))}
	for i, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = candidate.TaskSpan
		}
		if !kind.Valid() {
			return nil, fmt.Errorf("static: entry %d: unknown kind %q", i, e.Kind)
		}
		if e.Span == "" {
			return nil, fmt.Errorf("static: entry %d: empty span", i)
		}
		t.m[key{kind, normalize.Key(e.Span)}] = e.Candidates
	}
	return t, nil
}

// Load reads a table from a YAML file
func Load(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := config.DecodeYAML(b, &f); err != nil {
		return nil, err
	}
	return New(f.Entries)
}

// Propose returns the ranked candidates for the span, ErrEmpty when unknown
func (t *Table) Propose(ctx context.Context, req domain.Request) ([]candidate.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cs := candidate.Rank(t.m[key{req.Kind, normalize.Key(req.Span)}], req.K)
	if len(cs) == 0 {
		return nil, domain.ErrEmpty
	}
	return cs, nil
}

// Len reports the number of entries
func (t *Table) Len() int { return len(t.m) }
