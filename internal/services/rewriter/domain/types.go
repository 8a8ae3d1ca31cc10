// Package domain defines the rewriter boundary: requests, the port and the wire formats
package domain

import (
	"context"
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
)

// Request asks for up to K rewrites of Span in its context
// For sentence requests Span is the whole utterance and Left, Right are empty
type Request struct {
	Kind  candidate.Task
	Left  string
	Span  string
	Right string
	K     int
}

// Port proposes candidates; scores are comparable within one call only
type Port interface {
	Propose(ctx context.Context, req Request) ([]candidate.Candidate, error)
}

// PortFunc adapts a function to Port
type PortFunc func(ctx context.Context, req Request) ([]candidate.Candidate, error)

// Propose calls f
func (f PortFunc) Propose(ctx context.Context, req Request) ([]candidate.Candidate, error) {
	return f(ctx, req)
}

// Prompt renders the tagged prompt the rewriting model was trained on
func (r Request) Prompt() string {
	var b strings.Builder
	switch r.Kind {
	case candidate.TaskSentence:
		b.WriteString("<STW_CANON>\n")
		b.WriteString(r.Span)
		b.WriteString("\n</STW_CANON>")
	case candidate.TaskURL:
		writeSpanBlock(&b, "STW_URL", r)
	default:
		writeSpanBlock(&b, "STW_SPAN", r)
	}
	return b.String()
}

func writeSpanBlock(b *strings.Builder, tag string, r Request) {
	b.WriteString("<" + tag + ">\n")
	b.WriteString("LEFT: " + r.Left + "\n")
	b.WriteString("SPAN: ⟦" + r.Span + "⟧\n")
	b.WriteString("RIGHT: " + r.Right + "\n")
	b.WriteString("</" + tag + ">")
}
