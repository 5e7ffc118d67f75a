// Package dedupe decides whether an extracted candidate event is the same
// real-world event as one already on the calendar.
//
// Everything here is pure: no I/O, no logging, no shared state. Callers pass
// the comparison window in and get a decision back.
package dedupe

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize collapses runs of whitespace to a single space and trims the
// ends. Hangul is composed to NFC so that jamo-decomposed and precomposed
// spellings compare equal. Display text is never rewritten with this.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
