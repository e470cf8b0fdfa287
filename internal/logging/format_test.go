package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	cases := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{"plain", slog.StringValue("apple.png"), "apple.png"},
		{"spaces", slog.StringValue("Screenshot 2024-05-01 at 12.00.00.png"), `"Screenshot 2024-05-01 at 12.00.00.png"`},
		{"empty", slog.StringValue(""), `""`},
		{"equals", slog.StringValue("a=b"), `"a=b"`},
		{"error", slog.AnyValue(errors.New("http 429")), `"http 429"`},
		{"int", slog.IntValue(3), "3"},
		{"jittered backoff", slog.DurationValue(1234567891 * time.Nanosecond), "1.235s"},
		{"short wait", slog.DurationValue(500 * time.Microsecond), "500µs"},
	}
	for _, tc := range cases {
		if got := formatValue(tc.value); got != tc.want {
			t.Fatalf("%s: formatValue = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatTimestampKeepsMilliseconds(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 250*int(time.Millisecond), time.Local)
	if got := formatTimestamp(ts); got != "2024-05-01 12:00:00.250" {
		t.Fatalf("formatTimestamp = %q", got)
	}
	if got := formatTimestamp(time.Time{}); got != "" {
		t.Fatalf("zero time rendered as %q", got)
	}
}
