package domain

import (
	"errors"
	"testing"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
)

func TestPrompt(t *testing.T) {
	cases := []struct {
		req  Request
		want string
	}{
		{Request{Kind: candidate.TaskSpan, Left: "인증번호가 ", Span: "일이삼사", Right: "야"},
			"<STW_SPAN>\nLEFT: 인증번호가 \nSPAN: ⟦일이삼사⟧\nRIGHT: 야\n</STW_SPAN>"},
		{Request{Kind: candidate.TaskURL, Left: "", Span: "더블유 더블유", Right: " 닷 컴"},
			"<STW_URL>\nLEFT: \nSPAN: ⟦더블유 더블유⟧\nRIGHT:  닷 컴\n</STW_URL>"},
		{Request{Kind: candidate.TaskSentence, Span: "오늘 회의 있어"},
			"<STW_CANON>\n오늘 회의 있어\n</STW_CANON>"},
	}
	for _, c := range cases {
		if got := c.req.Prompt(); got != c.want {
			t.Fatalf("Prompt() = %q want %q", got, c.want)
		}
	}
}

func TestParseCandidates(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		k     int
		want  []string
		empty bool
		bad   bool
	}{
		{name: "plain", in: `[{"text":"1234","score":0.9},{"text":"일이삼사","score":0.5}]`, k: 5, want: []string{"1234", "일이삼사"}},
		{name: "fenced", in: "```json\n[{\"text\":\"a\",\"score\":0.1},{\"text\":\"b\",\"score\":0.7}]\n```", k: 5, want: []string{"b", "a"}},
		{name: "prose", in: "Here you go: [{\"text\":\"x\"}] thanks", k: 5, want: []string{"x"}},
		{name: "cap", in: `[{"text":"a","score":3},{"text":"b","score":2},{"text":"c","score":1}]`, k: 2, want: []string{"a", "b"}},
		{name: "dedupe", in: `[{"text":"a","score":1},{"text":" a ","score":0.9}]`, k: 5, want: []string{"a"}},
		{name: "missing scores keep order", in: `[{"text":"p"},{"text":"q"}]`, k: 5, want: []string{"p", "q"}},
		{name: "all blank", in: `[{"text":"  "}]`, k: 5, empty: true},
		{name: "no array", in: `sorry`, k: 5, bad: true},
		{name: "broken json", in: `[{"text":]`, k: 5, bad: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseCandidates(c.in, c.k)
			switch {
			case c.empty:
				if !errors.Is(err, ErrEmpty) {
					t.Fatalf("want ErrEmpty, got %v", err)
				}
				return
			case c.bad:
				if err == nil {
					t.Fatalf("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err %v", err)
			}
			texts := candidate.Texts(got)
			if len(texts) != len(c.want) {
				t.Fatalf("got %v want %v", texts, c.want)
			}
			for i := range texts {
				if texts[i] != c.want[i] {
					t.Fatalf("got %v want %v", texts, c.want)
				}
			}
		})
	}
}
