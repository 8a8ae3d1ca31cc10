package span

import (
	"strings"
)

// numericSpans tags arabic digit runs always and korean numeral runs only
// when a keyword precedes them or a unit or particle follows
func (f *Finder) numericSpans(text string, runes []rune, b2r []int) []match {
	var out []match
	for _, loc := range reDigits.FindAllStringIndex(text, -1) {
		s, e := b2r[loc[0]], b2r[loc[1]]
		out = append(out, match{start: s, end: e, tag: TagNumeric, format: f.format(runes, s, e)})
	}
	for _, loc := range reKorNums.FindAllStringIndex(text, -1) {
		s, e := b2r[loc[0]], b2r[loc[1]]
		if e-s < f.pack.Numeric.MinKoreanRun {
			continue
		}
		kw := f.keywordBefore(runes, s)
		unit, particle := f.suffixAfter(runes, e)
		if !kw && !unit && !particle {
			continue
		}
		out = append(out, match{start: s, end: e, tag: TagNumeric, format: f.format(runes, s, e)})
	}
	return out
}

func (f *Finder) format(runes []rune, start, end int) Format {
	if f.keywordBefore(runes, start) {
		return FormatCode
	}
	if unit, _ := f.suffixAfter(runes, end); unit {
		return FormatQuantity
	}
	return FormatUnknown
}

// keywordBefore scans the look-back window left of start for a context keyword
func (f *Finder) keywordBefore(runes []rune, start int) bool {
	from := max(0, start-f.pack.Numeric.Lookback)
	if from >= start {
		return false
	}
	hay := []byte(strings.ToLower(string(runes[from:start])))
	found := false
	f.keywords.findAll(hay, func(int, int) bool {
		found = true
		return false
	})
	return found
}

// suffixAfter reports whether the text right after end starts with a unit or
// a particle. Longer cues are tried first within the look-ahead window
func (f *Finder) suffixAfter(runes []rune, end int) (unit, particle bool) {
	to := min(len(runes), end+f.pack.Numeric.Lookahead)
	if end >= to {
		return false, false
	}
	after := string(runes[end:to])
	for _, u := range f.pack.Numeric.Units {
		if u != "" && strings.HasPrefix(after, u) {
			return true, false
		}
	}
	for _, p := range f.pack.Numeric.Particles {
		if p != "" && strings.HasPrefix(after, p) {
			return false, true
		}
	}
	return false, false
}
