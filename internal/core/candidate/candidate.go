// Package candidate holds rewrite proposals and their ranking rules
package candidate

import (
	"fmt"
	"sort"
	"strings"
)

// Candidate is one proposed replacement with a score comparable only to
// candidates from the same call
type Candidate struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Rank drops blank and duplicate texts, keeping the first occurrence, then
// stable sorts by score descending so ties keep generation order. At most k
// candidates are returned when k > 0
func Rank(in []Candidate, k int) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		t := strings.TrimSpace(c.Text)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, Candidate{Text: t, Score: c.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Top returns the best candidate of a ranked list
func Top(ranked []Candidate) (Candidate, bool) {
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// Margin is top1 - top2 of a ranked list, 1 when fewer than two candidates
func Margin(ranked []Candidate) float64 {
	if len(ranked) < 2 {
		return 1
	}
	return ranked[0].Score - ranked[1].Score
}

// Format renders a list for a spreadsheet cell: "a (0.620) | b (0.550)"
func Format(cs []Candidate) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%s (%.3f)", c.Text, c.Score)
	}
	return strings.Join(parts, " | ")
}

// Texts returns only the candidate strings
func Texts(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}

// Task is the kind of rewrite requested
type Task string

const (
	TaskSentence Task = "sentence"
	TaskSpan     Task = "span"
	TaskURL      Task = "url"
)

// Valid reports whether t is a known task
func (t Task) Valid() bool { return t == TaskSentence || t == TaskSpan || t == TaskURL }
