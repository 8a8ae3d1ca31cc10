// Package domain holds the resolution record and its store contract
package domain

import (
	"time"

	"github.com/LetsGoKDH/taps/internal/core/issue"
)

// Resolver says who settled an issue
type Resolver string

const (
	ResolverHuman Resolver = "human"
	ResolverAuto  Resolver = "auto"
)

// Resolution is one append only review decision. A later record for the same
// issue supersedes an earlier one, nothing is ever updated in place
type Resolution struct {
	IssueID        string    `json:"issue_id" validate:"required,notblank"`
	UttID          string    `json:"utt_id" validate:"required,notblank"`
	Resolver       Resolver  `json:"resolver" validate:"required,oneof=human auto"`
	Reviewer       string    `json:"reviewer,omitempty" validate:"max=200"`
	CandidateIndex *int      `json:"candidate_index,omitempty" validate:"omitempty,min=0"`
	FinalText      string    `json:"final_text"`
	Modified       bool      `json:"modified"`
	ResolvedAt     time.Time `json:"resolved_at"`
	Seq            uint64    `json:"seq"`
}

// Newer reports whether r supersedes o: later ResolvedAt, then higher Seq
func (r Resolution) Newer(o Resolution) bool {
	if !r.ResolvedAt.Equal(o.ResolvedAt) {
		return r.ResolvedAt.After(o.ResolvedAt)
	}
	return r.Seq > o.Seq
}

// FromIssue builds the resolution of is settled with final. CandidateIndex
// points at the first candidate with the same text
func FromIssue(is issue.Issue, final string, resolver Resolver, reviewer string) Resolution {
	r := Resolution{
		IssueID:   is.ID,
		UttID:     is.UttID,
		Resolver:  resolver,
		Reviewer:  reviewer,
		FinalText: final,
		Modified:  final != is.Prefill,
	}
	for i, c := range is.Candidates {
		if c.Text == final {
			r.CandidateIndex = &i
			break
		}
	}
	return r
}

// Texts maps issue id to final text, the shape the finalizer takes
func Texts(rs map[string]Resolution) map[string]string {
	out := make(map[string]string, len(rs))
	for id, r := range rs {
		out[id] = r.FinalText
	}
	return out
}
