// Package domain holds the records and ports of the correction runner
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/LetsGoKDH/taps/internal/core/apply"
	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/core/issue"
	"github.com/LetsGoKDH/taps/internal/core/normalize"
	"github.com/LetsGoKDH/taps/internal/core/span"
	"github.com/LetsGoKDH/taps/internal/core/triage"
)

// Segment is one timed piece of the transcription
type Segment struct {
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
	Text  string  `json:"text"`
}

// Record is one input line as produced by the transcription stage
type Record struct {
	SpeakerID        string    `json:"speaker_id" validate:"required,notblank"`
	SentenceID       string    `json:"sentence_id" validate:"required,notblank"`
	UttID            string    `json:"utt_id,omitempty"`
	Text             string    `json:"text" validate:"required,notblank"`
	TextRaw          string    `json:"text_raw,omitempty"`
	AvgLogprob       *float64  `json:"avg_logprob,omitempty"`
	NoSpeechProb     *float64  `json:"no_speech_prob,omitempty" validate:"omitempty,gte=0,lte=1"`
	CompressionRatio *float64  `json:"compression_ratio,omitempty" validate:"omitempty,gte=0"`
	Duration         *float64  `json:"duration,omitempty" validate:"omitempty,gte=0"`
	Language         string    `json:"language,omitempty"`
	Segments         []Segment `json:"segments,omitempty"`
	Alternatives     []string  `json:"alternatives,omitempty"`

	// Line is the 1 based input line, not part of the hash
	Line int `json:"-"`
}

// Resolve folds the text_raw alias into Text and fills the utterance id
func (r Record) Resolve() Record {
	if strings.TrimSpace(r.Text) == "" {
		r.Text = r.TextRaw
	}
	r.TextRaw = ""
	if r.UttID == "" && r.SpeakerID != "" && r.SentenceID != "" {
		r.UttID = r.SpeakerID + "_" + r.SentenceID
	}
	return r
}

// Hash is a stable digest of the fields that influence processing
func (r Record) Hash() string {
	b, _ := json.Marshal(r.Resolve())
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Signal is the optional confidence metadata
type Signal struct {
	AvgLogprob       *float64 `json:"avg_logprob,omitempty"`
	NoSpeechProb     *float64 `json:"no_speech_prob,omitempty"`
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`
	Duration         *float64 `json:"duration,omitempty"`
	Language         string   `json:"language,omitempty"`
}

// Utterance is an ingested record, never mutated after Ingest
type Utterance struct {
	ID           string
	SpeakerID    string
	SentenceID   string
	Text         string
	Segments     []Segment
	Alternatives []string
	Signal       Signal
	Hash         string
}

// Ingest builds the utterance, applying NFC and control character removal.
// Spacing is left as recorded
func (r Record) Ingest() Utterance {
	r = r.Resolve()
	segs := make([]Segment, len(r.Segments))
	for i, s := range r.Segments {
		s.Text = normalize.Ingest(s.Text)
		segs[i] = s
	}
	alts := make([]string, 0, len(r.Alternatives))
	for _, a := range r.Alternatives {
		if a = normalize.Ingest(a); strings.TrimSpace(a) != "" {
			alts = append(alts, a)
		}
	}
	return Utterance{
		ID:           r.UttID,
		SpeakerID:    r.SpeakerID,
		SentenceID:   r.SentenceID,
		Text:         normalize.Ingest(r.Text),
		Segments:     segs,
		Alternatives: alts,
		Signal: Signal{
			AvgLogprob:       r.AvgLogprob,
			NoSpeechProb:     r.NoSpeechProb,
			CompressionRatio: r.CompressionRatio,
			Duration:         r.Duration,
			Language:         r.Language,
		},
		Hash: r.Hash(),
	}
}

// Source is the issue builder view of u
func (u Utterance) Source() issue.Source {
	return issue.Source{UttID: u.ID, SpeakerID: u.SpeakerID, SentenceID: u.SentenceID, Text: u.Text}
}

// Mode says whether a run corrects spans only or also whole sentences
type Mode string

const (
	ModeSpan     Mode = "span"
	ModeSentence Mode = "sentence"
)

// Audit explains how an output was produced
type Audit struct {
	PolicyVersion   string       `json:"policy_version"`
	PipelineVersion string       `json:"pipeline_version"`
	TriageSignal    string       `json:"triage_signal"`
	TriageMode      string       `json:"triage_mode"`
	KCandidates     int          `json:"k_candidates"`
	ContextLen      int          `json:"context_len"`
	SpansDetected   int          `json:"spans_detected"`
	AutoFixed       int          `json:"auto_fixed"`
	SkippedOverlaps []apply.Edit `json:"skipped_overlaps,omitempty"`
	SpanErrors      []string     `json:"span_errors,omitempty"`
	Mode            Mode         `json:"mode"`
}

// SpanDecision is the verdict recorded for one span
type SpanDecision struct {
	Span    span.Span        `json:"span"`
	Verdict decision.Verdict `json:"verdict"`
	IssueID string           `json:"issue_id,omitempty"`
	// RewriterError is set when the rewriter failed and the span escalated
	RewriterError string `json:"rewriter_error,omitempty"`
}

// Output is one line of the run result
type Output struct {
	UttID      string           `json:"utt_id"`
	SpeakerID  string           `json:"speaker_id"`
	SentenceID string           `json:"sentence_id"`
	TextRaw    string           `json:"text_raw"`
	Bucket     triage.Bucket    `json:"bucket"`
	Decision   decision.Outcome `json:"decision"`
	TextAvail  *string          `json:"text_avail"`
	Issues     []issue.Issue    `json:"issues"`
	AutoEdits  []apply.Edit     `json:"auto_edits,omitempty"`
	Spans      []SpanDecision   `json:"spans,omitempty"`
	Audit      Audit            `json:"audit"`
}

// Invalid reports one rejected input record
type Invalid struct {
	Line  int    `json:"line"`
	UttID string `json:"utt_id,omitempty"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

// Stats is the batch summary logged at the end of a run
type Stats struct {
	Buckets   map[triage.Bucket]int    `json:"buckets"`
	Outcomes  map[decision.Outcome]int `json:"outcomes"`
	Actions   map[decision.Action]int  `json:"actions"`
	Tags      map[span.Tag]int         `json:"tags"`
	Issues    int                      `json:"issues"`
	Overlaps  int                      `json:"overlaps"`
	Rewriter  int                      `json:"rewriter_failures"`
	Resumed   int                      `json:"resumed"`
	Processed int                      `json:"processed"`
}

// NewStats returns stats with allocated maps
func NewStats() Stats {
	return Stats{
		Buckets:  map[triage.Bucket]int{},
		Outcomes: map[decision.Outcome]int{},
		Actions:  map[decision.Action]int{},
		Tags:     map[span.Tag]int{},
	}
}

// Add folds one output into s
func (s *Stats) Add(o Output) {
	s.Buckets[o.Bucket]++
	s.Outcomes[o.Decision]++
	for _, d := range o.Spans {
		s.Actions[d.Verdict.Action]++
		s.Tags[d.Span.Tag]++
		if d.RewriterError != "" {
			s.Rewriter++
		}
	}
	s.Issues += len(o.Issues)
	s.Overlaps += len(o.Audit.SkippedOverlaps)
}

// Report is what a run returns
type Report struct {
	RunID    string        `json:"run_id"`
	BatchID  string        `json:"batch_id"`
	Mode     triage.Mode   `json:"triage_mode"`
	Total    int           `json:"total"`
	Outputs  []Output      `json:"-"`
	Invalid  []Invalid     `json:"invalid"`
	Stats    Stats         `json:"stats"`
	Started  time.Time     `json:"started_at"`
	Elapsed  time.Duration `json:"elapsed"`
	Canceled bool          `json:"canceled,omitempty"`
}
