package validate

import (
	"testing"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
)

type sample struct {
	Speaker string  `json:"speaker_id" validate:"required"`
	Text    string  `json:"text" validate:"notblank"`
	K       int     `json:"k" validate:"min=1,max=10"`
	Score   float64 `json:"-"`
}

func TestStruct(t *testing.T) {
	cases := []struct {
		name  string
		in    sample
		field string
		msg   string
	}{
		{"ok", sample{Speaker: "s1", Text: "안녕", K: 3}, "", ""},
		{"missing speaker", sample{Text: "x", K: 1}, "speaker_id", "speaker_id is a required field"},
		{"blank text", sample{Speaker: "s", Text: "   ", K: 1}, "text", "text must not be blank"},
		{"k low", sample{Speaker: "s", Text: "x", K: 0}, "k", "k must be at least 1"},
		{"k high", sample{Speaker: "s", Text: "x", K: 11}, "k", "k must be at most 10"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Struct(c.in, perr.ErrorCodeInputValidation)
			if c.field == "" {
				if err != nil {
					t.Fatalf("unexpected err %v", err)
				}
				return
			}
			e, ok := perr.As(err)
			if !ok {
				t.Fatalf("want *perr.Error, got %T", err)
			}
			if e.Code() != perr.ErrorCodeInputValidation || e.Field() != c.field || e.Error() != c.msg {
				t.Fatalf("got code=%v field=%q msg=%q", e.Code(), e.Field(), e.Error())
			}
		})
	}
}

func TestStructMisuse(t *testing.T) {
	if err := Struct(nil, perr.ErrorCodeValidation); !perr.IsCode(err, perr.ErrorCodeUnknown) {
		t.Fatalf("want unknown code, got %v", err)
	}
}

func TestGetSingleton(t *testing.T) {
	if Get() != Get() {
		t.Fatalf("Get must return the same instance")
	}
}
