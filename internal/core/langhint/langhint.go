// Package langhint classifies the scripts present in a string
// Decision guardrails use it to spot newly introduced mixed Hangul and Latin text
package langhint

import "unicode"

// Script is a bit set of scripts seen in a string
type Script uint8

const (
	// Hangul syllables or jamo
	Hangul Script = 1 << iota
	// Latin letters
	Latin
	// Digit is any decimal digit
	Digit
	// Han ideographs
	Han
	// Other letters from any remaining script
	Other
)

// Of returns the set of scripts present in s
func Of(s string) Script {
	var sc Script
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			sc |= Digit
		case !unicode.IsLetter(r):
		case unicode.In(r, unicode.Hangul):
			sc |= Hangul
		case unicode.In(r, unicode.Latin):
			sc |= Latin
		case unicode.In(r, unicode.Han):
			sc |= Han
		default:
			sc |= Other
		}
	}
	return sc
}

// Has reports whether every bit of x is set
func (s Script) Has(x Script) bool { return s&x == x }

// Mixed reports whether s carries both Hangul and Latin letters
func Mixed(s string) bool { return Of(s).Has(Hangul | Latin) }

// IntroducesMixed reports whether after is mixed script while before was not
func IntroducesMixed(before, after string) bool {
	return Mixed(after) && !Mixed(before)
}

// IsJamo reports an isolated compatibility jamo, a sign of a broken syllable
func IsJamo(r rune) bool { return r >= 0x3131 && r <= 0x318E }

// Lang returns a coarse language hint from the dominant letter script
// It stays empty when fewer than minLetters letters are present
func Lang(s string, minLetters int) string {
	var hangul, latin, total int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.In(r, unicode.Hangul):
			hangul++
		case unicode.In(r, unicode.Latin):
			latin++
		}
	}
	if total < minLetters || total == 0 {
		return ""
	}
	switch {
	case hangul*2 > total:
		return "ko"
	case latin*2 > total:
		return "en"
	}
	return ""
}
