package raw

import "testing"

func TestConfGet(t *testing.T) {
	t.Setenv("TAPS_NAME", " taps ")
	t.Setenv("LOG_FORMAT", " json ")

	root := New()
	lg := root.Prefix("LOG_")

	tests := []struct {
		name string
		conf Conf
		key  string
		def  string
		want string
	}{
		{name: "root hit", conf: root, key: "TAPS_NAME", def: "x", want: "taps"},
		{name: "prefixed hit", conf: lg, key: "FORMAT", def: "x", want: "json"},
		{name: "missing uses default", conf: lg, key: "MISSING", def: "console", want: "console"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conf.Get(tt.key, tt.def); got != tt.want {
				t.Fatalf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestConfGetBool(t *testing.T) {
	c := New().Prefix("B_")
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"0", true, false},
		{"nope", true, false},
	}
	for _, tc := range cases {
		t.Setenv("B_FLAG", tc.val)
		if got := c.GetBool("FLAG", tc.def); got != tc.want {
			t.Fatalf("GetBool(%q, %v) = %v, want %v", tc.val, tc.def, got, tc.want)
		}
	}
}

func TestConfGetInt(t *testing.T) {
	c := New().Prefix("I_")
	t.Setenv("I_N", " 12 ")
	if got := c.GetInt("N", 3); got != 12 {
		t.Fatalf("GetInt = %d, want 12", got)
	}
	t.Setenv("I_BAD", "1x")
	if got := c.GetInt("BAD", 3); got != 3 {
		t.Fatalf("GetInt bad = %d, want 3", got)
	}
	t.Setenv("I_NEG", "-4")
	if got := c.GetInt("NEG", 3); got != 3 {
		t.Fatalf("GetInt negative = %d, want 3", got)
	}
}
