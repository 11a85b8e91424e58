package text

import "strings"

// ellipsis is appended when truncation removes content.
const ellipsis = "…"

// TruncateRunes shortens text to at most max runes, appending an ellipsis when
// content was removed. The result including the ellipsis never exceeds max.
// A max of zero or less returns the empty string.
//
// This is the fallback path for digests whose summary generation failed: the
// raw content is truncated into the coarse layers instead of being generated.
func TruncateRunes(text string, max int) string {
	if max <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max == 1 {
		return ellipsis
	}

	cut := strings.TrimRight(string(runes[:max-1]), " \t\n")
	return cut + ellipsis
}
