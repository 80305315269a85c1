package chunk

import (
	"sort"
	"strings"
	"unicode"
)

// keywordStopwords are language keywords and filler identifiers that
// carry no search signal.
var keywordStopwords = map[string]bool{
	"var": true, "let": true, "const": true, "func": true, "function": true,
	"def": true, "class": true, "return": true, "if": true, "else": true,
	"for": true, "while": true, "import": true, "from": true, "package": true,
	"type": true, "interface": true, "struct": true, "new": true, "this": true,
	"self": true, "nil": true, "null": true, "true": true, "false": true,
	"err": true, "error": true, "string": true, "int": true, "bool": true,
	"void": true, "public": true, "private": true, "static": true, "end": true,
}

// ExtractKeywords pulls the most frequent identifier-derived tokens from
// source text. CamelCase and snake_case identifiers are split into
// words, lowercased, and ranked by frequency with ties broken
// alphabetically for determinism.
func ExtractKeywords(content string, limit int) []string {
	counts := make(map[string]int)

	for _, ident := range splitIdentifiers(content) {
		for _, word := range SplitIdentifierWords(ident) {
			word = strings.ToLower(word)
			if len(word) < 3 || keywordStopwords[word] {
				continue
			}
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// splitIdentifiers tokenizes source text into identifier-shaped runs.
func splitIdentifiers(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// SplitIdentifierWords splits an identifier into its constituent words:
// "getUserByID" -> [get, User, By, ID], "max_file_size" -> [max, file, size].
func SplitIdentifierWords(ident string) []string {
	var words []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}

	runes := []rune(ident)
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
		case unicode.IsUpper(r):
			// Boundary at lower->Upper and at the last upper of an
			// acronym run ("HTTPServer" -> HTTP, Server).
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				flush()
			}
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()

	return words
}

// HasCamelCase reports whether s contains a lower-to-upper transition.
func HasCamelCase(s string) bool {
	runes := []rune(s)
	for i := 1; i < len(runes); i++ {
		if unicode.IsLower(runes[i-1]) && unicode.IsUpper(runes[i]) {
			return true
		}
	}
	return false
}
