package grading

import "strings"

// normalize trims surrounding whitespace and casefolds. Short-answer matching
// is exact beyond that: no punctuation stripping, no fuzzy distance.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
