package textutil

import (
	"regexp"
	"strings"
	"testing"
)

var slugAlphabet = regexp.MustCompile(`^[a-z0-9_-]+$`)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a red apple on white background", "a-red-apple-on-white-background"},
		{"Test Image!!!", "test-image"},
		{"  Mixed CASE   spacing\tand\nlines ", "mixed-case-spacing-and-lines"},
		{"Café Crème Brûlée", "cafe-creme-brulee"},
		{"snake_case_kept", "snake_case_kept"},
		{"dash - separated -- words", "dash-separated-words"},
		{"--leading and trailing__", "leading-and-trailing"},
		{"report.final.v2", "reportfinalv2"},
		{"ＦＵＬＬＷＩＤＴＨ", "fullwidth"},
		{"", FallbackSlug},
		{"!!!???", FallbackSlug},
		{"日本語", FallbackSlug},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugifyOutputAlphabet(t *testing.T) {
	inputs := []string{
		"Hello, World! (2024) #1",
		"Ünïcödé & symbols ™ © ®",
		"tabs\tand\nnewlines",
		"emoji 🍎 apple",
		"a/b\\c:d*e?f\"g<h>i|j",
	}
	for _, in := range inputs {
		got := Slugify(in)
		if !slugAlphabet.MatchString(got) {
			t.Fatalf("Slugify(%q) = %q contains characters outside [a-z0-9_-]", in, got)
		}
		if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
			t.Fatalf("Slugify(%q) = %q has untrimmed separator", in, got)
		}
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := Slugify(long)
	if len(got) > MaxSlugLength {
		t.Fatalf("expected at most %d bytes, got %d", MaxSlugLength, len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("expected trailing hyphen trimmed after cap, got %q", got)
	}
}
