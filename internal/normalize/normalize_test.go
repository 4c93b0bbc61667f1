package normalize

import "testing"

func TestAccountNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  foo  ", "foo"},
		{"foo/", "foo"},
		{"foo///", "foo"},
		{"https://x.com/foo", "foo"},
		{"http://x.com/foo/", "foo"},
		{"@foo", "foo"},
		{"https://x.com/@foo", "foo"}, // URL collapse runs first, then the leading @ strip
	}
	for _, c := range cases {
		got, err := Account(c.in)
		if err != nil {
			t.Fatalf("Account(%q) returned error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Account(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAccountEmptyIsError(t *testing.T) {
	for _, in := range []string{"", "   ", "/", "https://x.com/@", "@"} {
		if _, err := Account(in); err == nil {
			t.Errorf("Account(%q) expected error, got none", in)
		}
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{"Hello World", "  ＡＢＣ  ", "MIXED Case Ｔｅｘｔ"}
	for _, in := range inputs {
		once := Text(in)
		twice := Text(once)
		if once != twice {
			t.Errorf("Text not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestParseKeywordInputRoundTrip(t *testing.T) {
	got := ParseKeywordInput("A, b\nC")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("ParseKeywordInput length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseKeywordInput()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseKeywordInputDropsEmpties(t *testing.T) {
	got := ParseKeywordInput("a,,\n\nb,  ,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("ParseKeywordInput length = %d, want %d (%v)", len(got), len(want), got)
	}
}
