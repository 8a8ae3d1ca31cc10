package service

import (
	"testing"

	"github.com/LetsGoKDH/taps/internal/core/apply"
	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/core/issue"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

func overlapOutput() domain.Output {
	return domain.Output{
		UttID:    "u",
		TextRaw:  "가나다라마바사아자차",
		Decision: decision.PartiallyEscalated,
		Issues: []issue.Issue{
			{ID: "u#0", UttID: "u", SpanStart: 0, SpanEnd: 5, RawSpan: "가나다라마"},
			{ID: "u#1", UttID: "u", SpanStart: 3, SpanEnd: 8, RawSpan: "라마바사아"},
		},
	}
}

func TestFinalize_OverlapSkipped(t *testing.T) {
	f, err := Finalize(overlapOutput(), map[string]string{"u#0": "하나", "u#1": "둘"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if f.Decision != decision.FullyAccepted || f.TextAvail == nil || *f.TextAvail != "하나바사아자차" {
		t.Fatalf("final = %+v", f)
	}
	if len(f.Applied) != 1 || f.Applied[0].Ref != "u#0" {
		t.Fatalf("applied = %+v", f.Applied)
	}
	if len(f.SkippedOverlaps) != 1 || f.SkippedOverlaps[0].Ref != "u#1" {
		t.Fatalf("skipped = %+v", f.SkippedOverlaps)
	}
}

func TestFinalize(t *testing.T) {
	cases := []struct {
		name     string
		resolved map[string]string
		auto     []apply.Edit
		want     decision.Outcome
		text     string
		pending  []string
	}{
		{"nothing resolved", nil, nil, decision.PartiallyEscalated, "", []string{"u#0", "u#1"}},
		{"one pending", map[string]string{"u#1": "x"}, nil, decision.PartiallyEscalated, "", []string{"u#0"}},
		{"resolved to source", map[string]string{"u#0": "가나다라마", "u#1": "라마바사아"}, nil, decision.Unchanged, "가나다라마바사아자차", nil},
		{"auto edit kept", map[string]string{"u#0": "가나다라마", "u#1": "라마바사아"},
			[]apply.Edit{{Start: 9, End: 10, Text: "카"}}, decision.FullyAccepted, "가나다라마바사아자카", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			o := overlapOutput()
			o.AutoEdits = c.auto
			f, err := Finalize(o, c.resolved)
			if err != nil {
				t.Fatalf("finalize: %v", err)
			}
			if f.Decision != c.want {
				t.Fatalf("decision = %s want %s", f.Decision, c.want)
			}
			if c.want == decision.PartiallyEscalated {
				if f.TextAvail != nil {
					t.Fatalf("pending output carries text %q", *f.TextAvail)
				}
			} else if f.TextAvail == nil || *f.TextAvail != c.text {
				t.Fatalf("text = %v want %q", f.TextAvail, c.text)
			}
			if len(f.Pending) != len(c.pending) {
				t.Fatalf("pending = %v want %v", f.Pending, c.pending)
			}
			for i := range c.pending {
				if f.Pending[i] != c.pending[i] {
					t.Fatalf("pending = %v want %v", f.Pending, c.pending)
				}
			}
		})
	}
}

func TestFinalize_OutOfRangeReported(t *testing.T) {
	o := overlapOutput()
	o.Issues[1].SpanEnd = 40
	f, err := Finalize(o, map[string]string{"u#0": "하나", "u#1": "둘"})
	if err == nil {
		t.Fatalf("want span range error")
	}
	if f.TextAvail == nil || *f.TextAvail != "하나바사아자차" {
		t.Fatalf("valid edits must still apply: %+v", f)
	}
}
