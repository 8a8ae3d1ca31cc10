package decision

// Outcome is the per utterance aggregate
type Outcome string

const (
	FullyAccepted      Outcome = "fully-accepted"
	PartiallyEscalated Outcome = "partially-escalated"
	Unchanged          Outcome = "unchanged"
)

// Aggregate folds span actions into an utterance outcome. Any escalation
// blocks the utterance; otherwise the outcome is unchanged exactly when the
// canonical text equals the raw text. That covers zero spans and also spans
// that were all passed or accepted as written, so unchanged always means the
// text came through untouched and fully-accepted always means it was edited
func Aggregate(actions []Action, raw, canonical string) Outcome {
	for _, a := range actions {
		if a == Escalate {
			return PartiallyEscalated
		}
	}
	if canonical == raw {
		return Unchanged
	}
	return FullyAccepted
}

// TextAvail returns the canonical text to emit, nil while review is pending
func TextAvail(o Outcome, canonical string) *string {
	if o == PartiallyEscalated {
		return nil
	}
	return &canonical
}
