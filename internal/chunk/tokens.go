package chunk

import "strings"

// Character classes used by the token approximation. These mirror the
// sets the search engine uses for query classification.
const (
	punctuationChars = "{}()[];,.<>"
	operatorChars    = "=+-*/%&|^~"
)

// CountTokens approximates the token count of source text:
// whitespace-split words, plus one per punctuation character, plus half
// the operator characters. The counter is pure and deterministic; it is
// documented as approximate and only has to be monotone under
// concatenation up to additive error.
func CountTokens(s string) int {
	words := len(strings.Fields(s))

	var punct, ops int
	for _, r := range s {
		if strings.ContainsRune(punctuationChars, r) {
			punct++
		} else if strings.ContainsRune(operatorChars, r) {
			ops++
		}
	}

	return words + punct + ops/2
}
