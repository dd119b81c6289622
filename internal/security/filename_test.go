package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"oval", "oval"},
		{"kitchen oval #2", "kitchen_oval_2"},
		{"../../etc/passwd", "etc_passwd"},
		{"..", "unknown"},
		{"", "unknown"},
		{".hidden", "hidden"},
		{"a/b\\c", "a_b_c"},
		{"track_v1.2-final", "track_v1.2-final"},
		{"große Schleife", "gro_e_Schleife"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFilename(strings.Repeat("x", 500))
	if len(long) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(long), maxFilenameLen)
	}
}
