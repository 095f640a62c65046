package search

import "strings"

// Stop words to filter out of graph seed terms
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "which": true, "who": true,
	"when": true, "where": true, "how": true, "why": true, "does": true,
	"about": true,
}

// seedTerms splits a question into lowercase keyword terms for graph
// traversal seeding, trimming punctuation and dropping stop words and
// single-character fragments.
func seedTerms(question string) []string {
	words := strings.Fields(question)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}¿¡"))

		if len(cleaned) < 2 || stopWords[cleaned] {
			continue
		}
		filtered = append(filtered, cleaned)
	}

	return filtered
}
