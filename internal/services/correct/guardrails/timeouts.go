// Package guardrails holds the time budgets and the run lease of the runner
package guardrails

import (
	"context"
	"time"
)

// Timeouts is the budget bundle for one run
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Run bounds the whole batch
	Run time.Duration

	// Utterance bounds one utterance after the triage barrier
	Utterance time.Duration

	// Rewrite bounds one rewriter call including retries
	Rewrite time.Duration

	// Ledger bounds one ledger write
	Ledger time.Duration
}

// DefaultTimeouts returns the production budgets
func DefaultTimeouts() Timeouts {
	return Timeouts{Utterance: time.Minute, Rewrite: 10 * time.Second, Ledger: 5 * time.Second}
}

// WithRun returns a context limited by the run budget
func WithRun(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Run)
}

// ForUtterance returns a sub context for one utterance
func ForUtterance(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Utterance)
}

// ForRewrite returns a sub context for one rewriter call
func ForRewrite(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Rewrite)
}

// ForLedger returns a sub context for a ledger write. It is detached from
// parent cancellation so a finished utterance is still recorded after the
// run is canceled
func ForLedger(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(parent)
	d := t.Ledger
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(base, d)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of d and any parent remainder, never
// extending the parent deadline. Zero d yields a plain cancelable child
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
