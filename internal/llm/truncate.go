package llm

import "strings"

// TruncationMarker is appended to inputs cut by Truncate.
const TruncationMarker = "\n\n[TRANSCRIPT TRUNCATED]"

// Truncate keeps at most max characters of text and marks the cut.
// max <= 0 disables truncation.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimRight(string(runes[:max]), " \t") + TruncationMarker
}
