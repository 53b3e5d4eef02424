package extract

import "unicode/utf8"

// EstimateTokens approximates the token count of text without a tokenizer
// dependency. One token per three runes, rounded up, sits between English
// (~4 chars/token) and CJK (~1.5 chars/token) averages.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 2) / 3
}
