package rulepack

import (
	"regexp"
	"strings"
	"testing"
)

func TestLoad_Embedded(t *testing.T) {
	p, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if p.Version != 1 {
		t.Fatalf("version = %d", p.Version)
	}
	if p.Numeric.Lookahead != 5 || p.Numeric.Lookback != 20 {
		t.Fatalf("numeric windows = %d/%d", p.Numeric.Lookahead, p.Numeric.Lookback)
	}
	if len(p.Idioms.Expressions) == 0 {
		t.Fatalf("expected idioms")
	}
	if !p.Known("회의실") || p.Known("회의싷") {
		t.Fatalf("lexicon lookup wrong")
	}
	if !p.IsUnit("개") || !p.IsParticle("를") || p.IsUnit("를") {
		t.Fatalf("unit/particle sets wrong")
	}
}

func TestPhonetic(t *testing.T) {
	re := MustLoad().Phonetic()
	if re == nil {
		t.Fatalf("phonetic matcher missing")
	}
	for _, s := range []string{"더블유 더블유 더블유", "네이버 닷 컴", "에이치티티피에스", "닷컴"} {
		if !re.MatchString(s) {
			t.Fatalf("expected phonetic match in %q", s)
		}
	}
	if re.MatchString("회의실 예약") {
		t.Fatalf("unexpected phonetic match")
	}
}

func TestDomainPattern(t *testing.T) {
	re := regexp.MustCompile(MustLoad().DomainPattern())
	if got := re.FindString("see naver.co.kr now"); got != "naver.co.kr" {
		t.Fatalf("domain = %q", got)
	}
	if re.MatchString("file.txt") {
		t.Fatalf("txt is not a tld")
	}
}

func TestStem(t *testing.T) {
	p := MustLoad()
	tests := []struct{ in, out string }{
		{"회의실에서", "회의실"},
		{"회의실에서는", "회의실"},
		{"자료를", "자료"},
		{"을", "을"},
		{"회의", "회의"},
	}
	for _, tc := range tests {
		if got := p.Stem(tc.in); got != tc.out {
			t.Fatalf("Stem(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse([]byte("version: 2\n")); err == nil {
		t.Fatalf("expected version error")
	}
	if _, err := Parse([]byte("version: 1\nbogus: true\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Parse([]byte("version: 1\nurl:\n  tlds: [com]\n  phonetic: ['(']\n")); err == nil || !strings.Contains(err.Error(), "phonetic") {
		t.Fatalf("expected phonetic compile error, got %v", err)
	}
	p, err := Parse([]byte("version: 1\nurl:\n  tlds: [com]\n"))
	if err != nil {
		t.Fatalf("minimal pack: %v", err)
	}
	if p.Noise.MinRepeat != 3 || p.Idioms.Threshold != 0.88 {
		t.Fatalf("defaults not applied: %+v %+v", p.Noise, p.Idioms)
	}
}
