package search

import (
	"sort"
	"strings"
)

// abbreviations expand common code shorthand into the prose words
// embedding models were trained on. Applied during preprocessing.
var abbreviations = map[string]string{
	"auth": "authentication",
	"cfg":  "configuration",
	"req":  "request",
	"res":  "response",
	"db":   "database",
}

// codeSynonyms map prose vocabulary to code vocabulary. Search terms
// and identifiers often share little surface vocabulary, so the
// fallback ladder retries the query with these substitutions.
var codeSynonyms = map[string][]string{
	"function":  {"func", "method", "def"},
	"method":    {"func", "function", "def"},
	"class":     {"type", "struct", "interface"},
	"type":      {"class", "struct", "interface"},
	"error":     {"err", "exception", "failure"},
	"exception": {"error", "panic", "err"},
	"handler":   {"handle", "callback", "listener"},
	"request":   {"req", "http", "call"},
	"response":  {"resp", "reply", "result"},
	"config":    {"configuration", "settings", "options"},
	"settings":  {"config", "configuration", "options"},
	"delete":    {"remove", "drop", "destroy"},
	"remove":    {"delete", "drop", "clear"},
	"create":    {"new", "make", "build"},
	"fetch":     {"get", "load", "retrieve"},
	"save":      {"store", "persist", "write"},
	"test":      {"spec", "check", "assert"},
	"login":     {"signin", "authenticate", "session"},
	"logout":    {"signout", "session", "revoke"},
}

// maxVariantsPerWord caps how many synonym substitutions one word
// contributes to the fallback ladder.
const maxVariantsPerWord = 3

// Preprocess collapses whitespace and expands known abbreviations so
// the query reads like the prose the embedding model expects.
func Preprocess(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		if full, ok := abbreviations[strings.ToLower(w)]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// SynonymVariants returns alternative phrasings of the query, each with
// exactly one word swapped for a code synonym. Variants are ordered by
// word position, then by synonym rank, so retries are deterministic.
func SynonymVariants(query string) []string {
	words := strings.Fields(query)
	var variants []string
	seen := map[string]bool{query: true}

	for i, w := range words {
		syns, ok := codeSynonyms[strings.ToLower(w)]
		if !ok {
			continue
		}
		if len(syns) > maxVariantsPerWord {
			syns = syns[:maxVariantsPerWord]
		}
		for _, syn := range syns {
			variant := make([]string, len(words))
			copy(variant, words)
			variant[i] = syn
			v := strings.Join(variant, " ")
			if !seen[v] {
				seen[v] = true
				variants = append(variants, v)
			}
		}
	}
	return variants
}

// SupportedAbbreviations lists the shorthand Preprocess expands, for
// documentation surfaces.
func SupportedAbbreviations() []string {
	out := make([]string, 0, len(abbreviations))
	for k := range abbreviations {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
