// Package span finds risky regions of a transcript that deserve a rewrite
// proposal. Detection is read-only: spans carry rune offsets into the text and
// the text is never modified
package span

import (
	"regexp"
	"sort"
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/rulepack"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	pstr "github.com/LetsGoKDH/taps/internal/platform/strings"
)

// Tag is the risk category of a span
type Tag string

const (
	TagNumeric Tag = "N3"    // numeric-ambiguous
	TagForeign Tag = "E2"    // foreign-script / alphabetic
	TagURL     Tag = "U1"    // url-or-domain
	TagOOV     Tag = "OOV"   // out-of-vocabulary-lexical
	TagIdiom   Tag = "IDIOM" // idiom-corruption
	TagNoise   Tag = "NOISE" // generic-noise
)

// Tags lists every tag in priority order
var Tags = []Tag{TagURL, TagForeign, TagNumeric, TagIdiom, TagOOV, TagNoise}

// Valid reports whether t is a known tag
func (t Tag) Valid() bool {
	for _, x := range Tags {
		if x == t {
			return true
		}
	}
	return false
}

// Format is the numeric reading suggested by context
type Format string

const (
	FormatQuantity Format = "quantity"
	FormatCode     Format = "code"
	FormatUnknown  Format = "unknown"
)

// Span is a half open rune range [Start, End) of the source text
type Span struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	Tag    Tag    `json:"tag"`
	Format Format `json:"format,omitempty"`
	Left   string `json:"left"`
	Right  string `json:"right"`
}

// Len returns the span width in runes
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and o share at least one rune
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Options tunes the finder
type Options struct {
	ContextWidth int // runes of context on each side, default 40
}

// DefaultContextWidth is the reviewer context window
const DefaultContextWidth = 40

var (
	reEmail   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	reMixed   = regexp.MustCompile(`[A-Za-z]+\d+[A-Za-z\d]*|\d+[A-Za-z]+[A-Za-z\d]*`)
	reAlpha   = regexp.MustCompile(`[A-Za-z]{2,}`)
	reDigits  = regexp.MustCompile(`\d[\d,.\-]*\d|\d`)
	reKorNums = regexp.MustCompile(`[일이삼사오육칠팔구십백천만억조영공빵]+`)
)

// Finder detects spans. It is immutable after New and safe for concurrent use
type Finder struct {
	pack     *rulepack.Pack
	width    int
	reURL    *regexp.Regexp
	keywords *acAutomaton
}

// New builds a finder over pack
func New(pack *rulepack.Pack, opts Options) *Finder {
	if opts.ContextWidth <= 0 {
		opts.ContextWidth = DefaultContextWidth
	}
	f := &Finder{
		pack:  pack,
		width: opts.ContextWidth,
		reURL: regexp.MustCompile(`https?://[^\s\p{Hangul}]+|www\.[^\s\p{Hangul}]+|` + pack.DomainPattern()),
	}
	f.keywords = newAutomaton()
	for i, kw := range pack.Numeric.Keywords {
		f.keywords.add([]byte(strings.ToLower(kw)), i)
	}
	f.keywords.build()
	return f
}

// ContextWidth returns the configured context window
func (f *Finder) ContextWidth() int { return f.width }

// match is a detection in rune offsets before context is attached
type match struct {
	start, end int
	tag        Tag
	format     Format
}

// Find returns the spans of text ordered by start ascending then end descending
// A detection outside the text is dropped and reported as a SpanRange error
// next to the remaining spans
func (f *Finder) Find(text string) ([]Span, error) {
	if pstr.IsBlank(text) {
		return nil, perr.InputValidationf("span: text is empty")
	}
	runes := []rune(text)
	b2r := pstr.ByteToRune(text)
	toks := tokenize(runes)

	var acc []match
	add := func(ms ...match) {
		for _, m := range ms {
			if !overlapsAny(acc, m.start, m.end) {
				acc = append(acc, m)
			}
		}
	}

	add(f.regexSpans(text, b2r, reEmail, TagURL)...)
	add(f.regexSpans(text, b2r, f.reURL, TagURL)...)
	if re := f.pack.Phonetic(); re != nil {
		add(f.regexSpans(text, b2r, re, TagURL)...)
	}
	add(f.regexSpans(text, b2r, reMixed, TagForeign)...)
	add(f.regexSpans(text, b2r, reAlpha, TagForeign)...)
	for _, m := range f.numericSpans(text, runes, b2r) {
		if m, ok := f.clip(acc, runes, m); ok {
			add(m)
		}
	}

	idioms, failed := f.idiomSpans(toks)
	add(idioms...)
	add(f.oovSpans(toks, failed)...)
	add(f.noiseSpans(toks)...)

	out := make([]Span, 0, len(acc))
	var rangeErr error
	for _, m := range acc {
		if m.start < 0 || m.end > len(runes) || m.start >= m.end {
			if rangeErr == nil {
				rangeErr = perr.SpanRangef("span: [%d,%d) outside text of %d runes", m.start, m.end, len(runes))
			}
			continue
		}
		out = append(out, Span{
			Start:  m.start,
			End:    m.end,
			Text:   string(runes[m.start:m.end]),
			Tag:    m.tag,
			Format: m.format,
			Left:   string(runes[max(0, m.start-f.width):m.start]),
			Right:  string(runes[m.end:min(len(runes), m.end+f.width)]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out, rangeErr
}

// regexSpans converts byte matches to rune matches, trimming trailing spaces
// that patterns like `(더블유\s*){2,3}` swallow
func (f *Finder) regexSpans(text string, b2r []int, re *regexp.Regexp, tag Tag) []match {
	var out []match
	for _, loc := range re.FindAllStringIndex(text, -1) {
		s, e := loc[0], loc[1]
		for e > s && (text[e-1] == ' ' || text[e-1] == '\t' || text[e-1] == '\n') {
			e--
		}
		if e <= s {
			continue
		}
		out = append(out, match{start: b2r[s], end: b2r[e], tag: tag})
	}
	return out
}

// clip trims a numeric match back to its longest stretch not covered by an
// earlier detection, dropping separators left dangling at either end
func (f *Finder) clip(acc []match, runes []rune, m match) (match, bool) {
	bs, be := 0, 0
	for s := m.start; s < m.end; {
		if covered(acc, s) {
			s++
			continue
		}
		e := s
		for e < m.end && !covered(acc, e) {
			e++
		}
		if e-s > be-bs {
			bs, be = s, e
		}
		s = e
	}
	for bs < be && isNumSep(runes[bs]) {
		bs++
	}
	for be > bs && isNumSep(runes[be-1]) {
		be--
	}
	if bs == be {
		return match{}, false
	}
	if bs != m.start || be != m.end {
		m.start, m.end = bs, be
		m.format = f.format(runes, bs, be)
	}
	return m, true
}

func covered(ms []match, i int) bool {
	for _, m := range ms {
		if m.start <= i && i < m.end {
			return true
		}
	}
	return false
}

func isNumSep(r rune) bool { return r == ',' || r == '.' || r == '-' }

func overlapsAny(ms []match, start, end int) bool {
	for _, m := range ms {
		if start < m.end && m.start < end {
			return true
		}
	}
	return false
}
