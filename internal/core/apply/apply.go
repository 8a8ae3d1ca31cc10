// Package apply rebuilds canonical text from a source and a set of resolved
// edits. The result depends only on the set of edits, never on their order
package apply

import (
	"fmt"
	"sort"
	"strings"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
)

// Edit replaces the runes [Start, End) of the source with Text
type Edit struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
	Ref   string `json:"ref,omitempty"` // issue id or span label, carried for reporting
}

func (e Edit) len() int { return e.End - e.Start }

func (e Edit) overlaps(o Edit) bool { return e.Start < o.End && o.Start < e.End }

func (e Edit) String() string { return fmt.Sprintf("[%d,%d)%q", e.Start, e.End, e.Text) }

// Result is the rebuilt text plus what was and was not applied
type Result struct {
	Text    string `json:"text"`
	Applied []Edit `json:"applied"`
	Skipped []Edit `json:"skipped,omitempty"` // rejected for overlapping an applied edit
	Invalid []Edit `json:"invalid,omitempty"` // outside the source
}

// Conflict returns the overlap report, nil when nothing was skipped
func (r Result) Conflict() *OverlapConflictError {
	if len(r.Skipped) == 0 {
		return nil
	}
	return &OverlapConflictError{Skipped: r.Skipped}
}

// OverlapConflictError lists edits skipped for overlap. It is a report for
// operators, the accompanying Result is still valid
type OverlapConflictError struct {
	Skipped []Edit
}

func (e *OverlapConflictError) Error() string {
	parts := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		parts[i] = s.String()
	}
	return fmt.Sprintf("apply: %d overlapping edit(s) skipped: %s", len(e.Skipped), strings.Join(parts, ", "))
}

// Unwrap exposes the error code to perr.CodeOf
func (e *OverlapConflictError) Unwrap() error {
	return perr.New(perr.ErrorCodeOverlapConflict, "overlapping edits skipped")
}

// Apply substitutes edits into source. Edits are taken longest first, then by
// start, then by text; an edit overlapping one already taken is skipped.
// Edits outside the source are excluded and reported with a SpanRange error
// alongside a usable Result
func Apply(source string, edits []Edit) (Result, error) {
	runes := []rune(source)
	var (
		valid []Edit
		res   Result
	)
	for _, e := range edits {
		if e.Start < 0 || e.Start >= e.End || e.End > len(runes) {
			res.Invalid = append(res.Invalid, e)
			continue
		}
		valid = append(valid, e)
	}

	sort.SliceStable(valid, func(i, j int) bool { return less(valid[i], valid[j]) })
	for _, e := range valid {
		clash := false
		for _, a := range res.Applied {
			if e.overlaps(a) {
				clash = true
				break
			}
		}
		if clash {
			res.Skipped = append(res.Skipped, e)
			continue
		}
		res.Applied = append(res.Applied, e)
	}

	sortByPos(res.Applied)
	sortByPos(res.Skipped)
	sortByPos(res.Invalid)

	// right to left keeps earlier offsets valid
	out := runes
	for i := len(res.Applied) - 1; i >= 0; i-- {
		e := res.Applied[i]
		tail := append([]rune(e.Text), out[e.End:]...)
		out = append(out[:e.Start:e.Start], tail...)
	}
	res.Text = string(out)

	if len(res.Invalid) > 0 {
		return res, perr.SpanRangef("apply: %d edit(s) outside text of %d runes, first %s",
			len(res.Invalid), len(runes), res.Invalid[0])
	}
	return res, nil
}

func less(a, b Edit) bool {
	if a.len() != b.len() {
		return a.len() > b.len()
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.Text != b.Text {
		return a.Text < b.Text
	}
	return a.Ref < b.Ref
}

func sortByPos(es []Edit) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Start != es[j].Start {
			return es[i].Start < es[j].Start
		}
		if es[i].End != es[j].End {
			return es[i].End < es[j].End
		}
		if es[i].Text != es[j].Text {
			return es[i].Text < es[j].Text
		}
		return es[i].Ref < es[j].Ref
	})
}
