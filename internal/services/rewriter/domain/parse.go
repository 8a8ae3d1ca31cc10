package domain

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
)

// ErrEmpty is returned when a response holds no usable candidate
var ErrEmpty = errors.New("rewriter: no usable candidates")

// ParseCandidates reads a JSON array of {"text","score"} objects out of a model
// reply, tolerating markdown fences and prose around the array
// The result is ranked and capped at k
func ParseCandidates(content string, k int) ([]candidate.Candidate, error) {
	body := stripFences(strings.TrimSpace(content))
	start := strings.IndexByte(body, '[')
	end := strings.LastIndexByte(body, ']')
	if start < 0 || end <= start {
		return nil, errors.New("rewriter: response has no json array")
	}

	var raw []struct {
		Text  string   `json:"text"`
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil, err
	}

	out := make([]candidate.Candidate, 0, len(raw))
	for i, r := range raw {
		score := 1 - float64(i)/float64(len(raw))
		if r.Score != nil {
			score = *r.Score
		}
		out = append(out, candidate.Candidate{Text: r.Text, Score: score})
	}
	out = candidate.Rank(out, k)
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
