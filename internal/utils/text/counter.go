// Package text holds the rune-aware counting and truncation helpers shared
// by extraction, summarization and the degraded fallback path.
package text

import "strings"

// CountRunes counts Unicode characters rather than bytes, so CJK text and
// emoji size the same way everywhere budgets are applied. Summarization
// providers and the degraded path all use it when sizing prompts and
// excerpts.
//
//	CountRunes("hello")    // 5
//	CountRunes("こんにちは") // 5, not 15
func CountRunes(text string) int {
	return len([]rune(text))
}

// CountWords counts whitespace-delimited tokens in the given text.
// It is used to record how much extracted content a digest was built from.
// For scripts written without inter-word spaces the count reflects whitespace
// segments, not linguistic words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
