package gptbot

import "unicode/utf8"

// CharsPerToken is the divisor used by EstimateTokens. Providers document
// roughly four characters per token; two keeps the estimate well above the
// real count so budget checks fail before the service rejects a prompt.
const CharsPerToken = 2

// EstimateTokens returns a conservative token count for text: its length in
// characters (runes) divided by CharsPerToken, rounded up. It is pure and
// monotonic in the character count.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + CharsPerToken - 1) / CharsPerToken
}
