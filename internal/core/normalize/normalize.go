// Package normalize prepares transcript text for the correction gate
//
// Ingest is applied once when an utterance enters the gate, so every later
// rune offset refers to the ingested text:
// 1 drop controls and invalid UTF-8
// 2 Unicode NFC, composing Hangul jamo sequences into syllables
// 3 remove format characters (ZWJ, ZWNJ, BOM)
//
// Whitespace is kept byte for byte, so an utterance without edits comes out
// exactly as it went in.
//
// Key is a lookup projection for lexicon and idiom matching only and is never
// written back into text
package normalize

import (
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var ingestPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)),
		)
	},
}

var keyPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			width.Fold,
			runes.Remove(runes.In(unicode.Cf)),
			runes.Remove(runes.Predicate(unicode.IsSpace)),
		)
	},
}

func run(p *sync.Pool, s string) string {
	tr := p.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	p.Put(tr)
	if err != nil {
		return s
	}
	return out
}

// Ingest returns the canonical stored form of a raw transcript
func Ingest(s string) string {
	if s == "" {
		return ""
	}
	return run(&ingestPool, Sanitize(s))
}

// Key returns the case, width and space insensitive form used for lookups
func Key(s string) string {
	if s == "" {
		return ""
	}
	return run(&keyPool, Sanitize(s))
}
