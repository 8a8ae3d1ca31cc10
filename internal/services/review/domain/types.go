// Package domain holds the review sheet row and the review api payloads
package domain

import (
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/issue"
)

// Sheet is the worksheet name of the review workbook
const Sheet = "Issues"

// Columns is the header row, in order
var Columns = []string{
	"issue_id", "utt_id", "speaker_id", "sentence_id", "bucket", "tag",
	"span_start", "span_end", "raw_span", "context_marked", "candidates",
	"recommended", "final_text", "status", "notes", "avg_logprob", "compression_ratio",
}

// Row status values
const (
	StatusOpen = "open"
	StatusDone = "done"
	StatusSkip = "skip"
)

// Row is one issue line of the review sheet
type Row struct {
	Line             int
	IssueID          string
	UttID            string
	SpeakerID        string
	SentenceID       string
	Bucket           string
	Tag              string
	SpanStart        int
	SpanEnd          int
	RawSpan          string
	ContextMarked    string
	Candidates       string
	Recommended      string
	FinalText        string
	Status           string
	Notes            string
	AvgLogprob       *float64
	CompressionRatio *float64
}

// Final decides what a reviewed row resolves to. A row marked done settles,
// with an empty final_text taking the recommendation. Any other row settles
// only when final_text was edited away from the recommendation, so an
// untouched open row and a row marked skip stay pending
func (r Row) Final(is issue.Issue) (string, bool) {
	status := strings.ToLower(strings.TrimSpace(r.Status))
	text := strings.TrimSpace(r.FinalText)
	switch {
	case status == StatusSkip:
		return "", false
	case status == StatusDone && text == "":
		return is.Prefill, true
	case status == StatusDone:
		return r.FinalText, true
	case text == "" || text == strings.TrimSpace(is.Prefill):
		return "", false
	}
	return r.FinalText, true
}

// ResolveRequest is the body of POST /v1/issues/{id}/resolution. Without a
// final text or candidate index the recommendation is taken
type ResolveRequest struct {
	FinalText      *string `json:"final_text,omitempty"`
	CandidateIndex *int    `json:"candidate_index,omitempty" validate:"omitempty,min=0"`
	Reviewer       string  `json:"reviewer,omitempty" validate:"max=200"`
}
