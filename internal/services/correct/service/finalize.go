package service

import (
	"sort"

	"github.com/LetsGoKDH/taps/internal/core/apply"
	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

// Final is an output reconciled with review resolutions
type Final struct {
	UttID           string           `json:"utt_id"`
	SpeakerID       string           `json:"speaker_id"`
	SentenceID      string           `json:"sentence_id"`
	TextRaw         string           `json:"text_raw"`
	Decision        decision.Outcome `json:"decision"`
	TextAvail       *string          `json:"text_avail"`
	Pending         []string         `json:"pending,omitempty"`
	Applied         []apply.Edit     `json:"applied"`
	SkippedOverlaps []apply.Edit     `json:"skipped_overlaps,omitempty"`
}

// Finalize rebuilds canonical text from the automatic edits of o plus the
// final text of every resolved issue. resolved maps issue id to final text.
// While any issue is unresolved the text stays withheld
func Finalize(o domain.Output, resolved map[string]string) (Final, error) {
	f := Final{
		UttID:      o.UttID,
		SpeakerID:  o.SpeakerID,
		SentenceID: o.SentenceID,
		TextRaw:    o.TextRaw,
	}

	edits := append([]apply.Edit(nil), o.AutoEdits...)
	for _, is := range o.Issues {
		final, ok := resolved[is.ID]
		if !ok {
			f.Pending = append(f.Pending, is.ID)
			continue
		}
		edits = append(edits, is.Edit(final))
	}
	sort.Strings(f.Pending)

	res, err := apply.Apply(o.TextRaw, edits)
	f.Applied = res.Applied
	if c := res.Conflict(); c != nil {
		f.SkippedOverlaps = c.Skipped
	}

	actions := []decision.Action{decision.Accept}
	if len(f.Pending) > 0 {
		actions = append(actions, decision.Escalate)
	}
	f.Decision = decision.Aggregate(actions, o.TextRaw, res.Text)
	f.TextAvail = decision.TextAvail(f.Decision, res.Text)
	return f, err
}
