package span

import (
	"unicode"
	"unicode/utf8"
)

// isWord reports whether r belongs to a token: letters, numbers, combining
// marks and connector punctuation. Hyphens and other punctuation split tokens
func isWord(r rune) bool {
	if r == utf8.RuneError || r == 0 {
		return false
	}
	return unicode.IsLetter(r) ||
		unicode.IsNumber(r) ||
		unicode.In(r, unicode.Mn, unicode.Pc)
}

// token is a maximal run of word runes with rune offsets
type token struct {
	start, end int
	text       string
}

func tokenize(runes []rune) []token {
	var out []token
	start := -1
	for i, r := range runes {
		if isWord(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, token{start: start, end: i, text: string(runes[start:i])})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, token{start: start, end: len(runes), text: string(runes[start:])})
	}
	return out
}

func isHangulWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.Is(unicode.Hangul, r) {
			return false
		}
	}
	return true
}
