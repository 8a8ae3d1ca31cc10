package testkit

import "testing"

func TestMustPanic(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("boom") })
}

func TestMustNotPanic(t *testing.T) {
	t.Parallel()
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	t.Parallel()
	MustContain(t, "인증번호가 일이삼사야", "일이삼사")
}

type row struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func TestJSONLRoundTrip(t *testing.T) {
	t.Parallel()
	path := WriteJSONL(t, "rows.jsonl", row{"a", "<b>"}, row{"b", "둘"})
	got := ReadJSONL[row](t, path)
	if len(got) != 2 || got[0].Text != "<b>" || got[1].Text != "둘" {
		t.Fatalf("ReadJSONL = %+v", got)
	}
}
