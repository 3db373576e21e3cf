package util

import "testing"

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"zero limit", "hello", 0, ""},
		{"tiny limit skips ellipsis", "hello", 2, "he"},
		{"empty input", "", 5, ""},
		{"multibyte runes stay intact", "héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateRunes(tt.input, tt.maxRunes); got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestTruncateRunesFiftyRuneTitle(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	got := TruncateRunes(long, 50)
	if len([]rune(got)) != 50 {
		t.Errorf("Expected 50 runes, got %d", len([]rune(got)))
	}
	if got[47:] != "..." {
		t.Errorf("Expected ellipsis suffix, got %q", got[47:])
	}
}
