// Package issue builds self contained review records for spans the decision
// engine escalated
package issue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/apply"
	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/core/span"
	"github.com/LetsGoKDH/taps/internal/core/triage"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
)

// TagSentence labels whole sentence issues. It is an issue label only, the
// span finder never emits it
const TagSentence span.Tag = "CANON"

// Markers around the span in marked context
const (
	MarkOpen      = "⟦"
	MarkClose     = "⟧"
	SafeMarkOpen  = "[["
	SafeMarkClose = "]]"
)

// Source is the utterance view an issue needs
type Source struct {
	UttID      string
	SpeakerID  string
	SentenceID string
	Text       string
}

// Meta is audit data carried on every issue
type Meta struct {
	PolicyVersion    string   `json:"policy_version"`
	TriageSignal     string   `json:"triage_signal"`
	Reason           string   `json:"reason,omitempty"`
	AvgLogprob       *float64 `json:"avg_logprob,omitempty"`
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`
	NoSpeechProb     *float64 `json:"no_speech_prob,omitempty"`
	Duration         *float64 `json:"duration,omitempty"`
	Language         string   `json:"language,omitempty"`
	RewriterError    string   `json:"rewriter_error,omitempty"`
}

// Issue is one span awaiting review
type Issue struct {
	ID                string                `json:"issue_id"`
	UttID             string                `json:"utt_id"`
	SpeakerID         string                `json:"speaker_id"`
	SentenceID        string                `json:"sentence_id"`
	Bucket            triage.Bucket         `json:"bucket"`
	Tag               span.Tag              `json:"tag"`
	Task              candidate.Task        `json:"task"`
	Format            span.Format           `json:"format,omitempty"`
	SpanStart         int                   `json:"span_start"`
	SpanEnd           int                   `json:"span_end"`
	RawSpan           string                `json:"raw_span"`
	ContextFull       string                `json:"context_full"`
	ContextMarked     string                `json:"context_marked"`
	ContextMarkedSafe string                `json:"context_marked_safe"`
	Candidates        []candidate.Candidate `json:"candidates"`
	Recommended       int                   `json:"recommended"`
	RecommendedText   string                `json:"recommended_text"`
	Prefill           string                `json:"user_fix"`
	Meta              Meta                  `json:"meta"`
}

// Edit turns a final text for this issue into an applier edit
func (i Issue) Edit(final string) apply.Edit {
	return apply.Edit{Start: i.SpanStart, End: i.SpanEnd, Text: final, Ref: i.ID}
}

// Builder creates issues with a fixed context window
type Builder struct {
	ContextWidth int
}

// NewBuilder returns a builder, widths below one use the default of 40 runes
func NewBuilder(width int) Builder {
	if width <= 0 {
		width = span.DefaultContextWidth
	}
	return Builder{ContextWidth: width}
}

// Build creates the issue for one span. candidates must be ranked. The prefill
// is the top candidate or, without candidates, the span text itself
func (b Builder) Build(src Source, sp span.Span, bucket triage.Bucket, cands []candidate.Candidate, ordinal int, meta Meta) Issue {
	runes := []rune(src.Text)
	start, end := max(0, sp.Start), min(len(runes), sp.End)
	w := b.ContextWidth
	if w <= 0 {
		w = span.DefaultContextWidth
	}
	left := string(runes[max(0, start-w):start])
	raw := string(runes[start:end])
	right := string(runes[end:min(len(runes), end+w)])

	task := candidate.TaskSpan
	if sp.Tag == span.TagURL {
		task = candidate.TaskURL
	}
	return b.finish(Issue{
		ID:            ID(src.UttID, ordinal),
		UttID:         src.UttID,
		SpeakerID:     src.SpeakerID,
		SentenceID:    src.SentenceID,
		Bucket:        bucket,
		Tag:           sp.Tag,
		Task:          task,
		Format:        sp.Format,
		SpanStart:     start,
		SpanEnd:       end,
		RawSpan:       raw,
		ContextFull:   src.Text,
		ContextMarked: left + MarkOpen + raw + MarkClose + right,
		Meta:          meta,
	}, cands)
}

// BuildSentence creates a whole sentence issue covering the full text
func (b Builder) BuildSentence(src Source, bucket triage.Bucket, cands []candidate.Candidate, ordinal int, meta Meta) Issue {
	return b.finish(Issue{
		ID:            ID(src.UttID, ordinal),
		UttID:         src.UttID,
		SpeakerID:     src.SpeakerID,
		SentenceID:    src.SentenceID,
		Bucket:        bucket,
		Tag:           TagSentence,
		Task:          candidate.TaskSentence,
		SpanStart:     0,
		SpanEnd:       len([]rune(src.Text)),
		RawSpan:       src.Text,
		ContextFull:   src.Text,
		ContextMarked: MarkOpen + src.Text + MarkClose,
		Meta:          meta,
	}, cands)
}

func (b Builder) finish(is Issue, cands []candidate.Candidate) Issue {
	is.ContextMarkedSafe = Safe(is.ContextMarked)
	is.Candidates = append([]candidate.Candidate{}, cands...)
	is.Recommended = -1
	is.Prefill = is.RawSpan
	if top, ok := candidate.Top(cands); ok {
		is.Recommended = 0
		is.RecommendedText = top.Text
		is.Prefill = top.Text
	}
	return is
}

// Safe swaps the bracket glyphs for ascii markers
func Safe(marked string) string {
	return strings.NewReplacer(MarkOpen, SafeMarkOpen, MarkClose, SafeMarkClose).Replace(marked)
}

// ID formats the stable issue id
func ID(uttID string, ordinal int) string { return fmt.Sprintf("%s#%d", uttID, ordinal) }

// ParseID splits an issue id into utterance id and ordinal
func ParseID(id string) (string, int, error) {
	i := strings.LastIndexByte(id, '#')
	if i <= 0 || i == len(id)-1 {
		return "", 0, perr.InvalidArgf("issue: malformed id %q", id)
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return "", 0, perr.InvalidArgf("issue: malformed id %q", id)
	}
	return id[:i], n, nil
}
