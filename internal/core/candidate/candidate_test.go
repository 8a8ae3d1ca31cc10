package candidate

import (
	"math"
	"testing"
)

func TestRank(t *testing.T) {
	in := []Candidate{
		{"b", 0.5},
		{"a", 0.9},
		{"  ", 1.0},
		{"c", 0.5},
		{"a", 0.1},
		{" d ", 0.2},
	}
	got := Rank(in, 0)
	want := []Candidate{{"a", 0.9}, {"b", 0.5}, {"c", 0.5}, {"d", 0.2}}
	if len(got) != len(want) {
		t.Fatalf("Rank = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if top := Rank(in, 2); len(top) != 2 || top[1].Text != "b" {
		t.Fatalf("Rank k=2 = %+v", top)
	}
	if in[0].Text != "b" {
		t.Fatalf("input mutated")
	}
}

func TestMarginAndTop(t *testing.T) {
	if m := Margin([]Candidate{{"1 2 3 4", 0.62}, {"1234", 0.55}}); math.Abs(m-0.07) > 1e-9 {
		t.Fatalf("margin = %v", m)
	}
	if m := Margin([]Candidate{{"x", 0.1}}); m != 1 {
		t.Fatalf("single margin = %v", m)
	}
	if _, ok := Top(nil); ok {
		t.Fatalf("Top(nil) ok")
	}
}

func TestFormat(t *testing.T) {
	got := Format([]Candidate{{"1 2 3 4", 0.62}, {"1234", 0.55}})
	if got != "1 2 3 4 (0.620) | 1234 (0.550)" {
		t.Fatalf("Format = %q", got)
	}
	if Format(nil) != "" {
		t.Fatalf("Format(nil) not empty")
	}
	if ts := Texts([]Candidate{{"a", 1}, {"b", 0}}); len(ts) != 2 || ts[1] != "b" {
		t.Fatalf("Texts = %v", ts)
	}
}
