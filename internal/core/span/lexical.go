package span

import (
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/langhint"
	"github.com/LetsGoKDH/taps/internal/core/normalize"
	pstr "github.com/LetsGoKDH/taps/internal/platform/strings"

	"github.com/antzucaro/matchr"
)

// tokRange is an inclusive-exclusive range of token indexes
type tokRange struct{ from, to int }

func (r tokRange) has(i int) bool { return i >= r.from && i < r.to }

// idiomSpans matches token windows against the idiom list. A window close to
// an expression but not equal to it is a corrupted idiom. Windows that only
// come near the list are returned as failed ranges for the OOV check
func (f *Finder) idiomSpans(toks []token) ([]match, []tokRange) {
	if len(toks) == 0 || len(f.pack.Idioms.Expressions) == 0 {
		return nil, nil
	}
	var (
		out    []match
		failed []tokRange
	)
	for _, expr := range f.pack.Idioms.Expressions {
		n := len(strings.Fields(expr))
		want := normalize.Key(expr)
		if n == 0 || want == "" {
			continue
		}

		best, bestFrom, bestTo := 0.0, -1, -1
		intact := false
		for size := max(1, n-1); size <= n+1 && !intact; size++ {
			if size != n && n < 3 {
				continue
			}
			for i := 0; i+size <= len(toks); i++ {
				got := f.windowKey(toks[i : i+size])
				if got == want {
					intact = true
					break
				}
				if sim := matchr.JaroWinkler(got, want, false); sim > best {
					best, bestFrom, bestTo = sim, i, i+size
				}
			}
		}
		if intact || bestFrom < 0 {
			continue
		}
		switch {
		case best >= f.pack.Idioms.Threshold:
			out = append(out, match{start: toks[bestFrom].start, end: toks[bestTo-1].end, tag: TagIdiom})
		case best >= f.pack.Idioms.Partial:
			failed = append(failed, tokRange{bestFrom, bestTo})
		}
	}
	return out, failed
}

// windowKey joins a window into a lookup key with the trailing ending of the
// last token removed, so "먹기야" still lines up with "먹기"
func (f *Finder) windowKey(win []token) string {
	var b strings.Builder
	for i, t := range win {
		s := t.text
		if i == len(win)-1 {
			s = f.pack.Stem(s)
		}
		b.WriteString(s)
	}
	return normalize.Key(b.String())
}

// oovSpans flags hangul tokens whose stem is unknown and that show a second
// sign of trouble: a near miss in the lexicon, a failed idiom window or a stray jamo
func (f *Finder) oovSpans(toks []token, failed []tokRange) []match {
	if len(f.pack.Lexicon.Stems) == 0 {
		return nil
	}
	var out []match
	for i, t := range toks {
		if pstr.RuneLen(t.text) < 2 || !isHangulWord(t.text) {
			continue
		}
		stem := f.pack.Stem(t.text)
		if f.pack.Known(stem) {
			continue
		}
		if !f.nearMiss(stem) && !inFailed(failed, i) && !hasJamo(t.text) {
			continue
		}
		out = append(out, match{start: t.start, end: t.start + pstr.RuneLen(stem), tag: TagOOV})
	}
	return out
}

// nearMiss looks for a lexicon entry of the same length one substitution away
func (f *Finder) nearMiss(stem string) bool {
	n := pstr.RuneLen(stem)
	if n < f.pack.Lexicon.MinStem {
		return false
	}
	for _, e := range f.pack.Lexicon.Stems {
		if pstr.RuneLen(e) != n {
			continue
		}
		d := matchr.Levenshtein(stem, e)
		if d == 0 || d > 1 {
			continue
		}
		if matchr.JaroWinkler(stem, e, false) >= f.pack.Lexicon.NearMissSimilarity {
			return true
		}
	}
	return false
}

func inFailed(rs []tokRange, i int) bool {
	for _, r := range rs {
		if r.has(i) {
			return true
		}
	}
	return false
}

func hasJamo(s string) bool {
	for _, r := range s {
		if langhint.IsJamo(r) {
			return true
		}
	}
	return false
}

// noiseSpans marks runs of the same token repeated back to back
func (f *Finder) noiseSpans(toks []token) []match {
	var out []match
	for i := 0; i < len(toks); {
		j := i + 1
		key := normalize.Key(toks[i].text)
		for j < len(toks) && normalize.Key(toks[j].text) == key {
			j++
		}
		if j-i >= f.pack.Noise.MinRepeat {
			out = append(out, match{start: toks[i].start, end: toks[j-1].end, tag: TagNoise})
		}
		i = j
	}
	return out
}
