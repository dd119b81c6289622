// Package security guards file names that come from API callers.
package security

import "strings"

const maxFilenameLen = 100

// SanitizeFilename maps s to a name safe to use as a single path element.
// Runs of characters outside [A-Za-z0-9._-] collapse to one underscore, and
// leading or trailing dots and underscores are dropped, so the result can
// never be "..", contain a separator or be hidden. An empty result becomes
// "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
