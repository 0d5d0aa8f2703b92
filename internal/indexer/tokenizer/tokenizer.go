// Package tokenizer provides text tokenisation for the article index.
// It lower-cases input, splits on non-alphanumeric boundaries, removes
// stop-words, and applies a simple suffix-based stemmer. The same pipeline
// runs over indexed fields and query terms so both sides agree on terms.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type stemRule struct {
	suffix      string
	replacement string
	minLen      int
}

// Ordered longest-first; the first suffix that leaves a long enough stem wins.
var stemRules = []stemRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into a slice of stemmed, lowercased Tokens with
// stop-words removed.
func Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term := Normalize(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Analyze tokenizes one indexed field. When every word of text is dropped
// (single letters, stop-words only) the lower-cased words themselves become
// the terms, so titles such as "C" or "What is this" stay findable.
func Analyze(text string) []Token {
	if tokens := Tokenize(text); len(tokens) > 0 {
		return tokens
	}
	return Raw(text)
}

// Raw lower-cases and splits text without dropping or stemming anything.
func Raw(text string) []Token {
	words := split(text)
	tokens := make([]Token, len(words))
	for i, word := range words {
		tokens[i] = Token{Term: strings.ToLower(word), Position: i}
	}
	return tokens
}

// Terms returns the term sequence of text without positions.
func Terms(text string) []string {
	tokens := Tokenize(text)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Term
	}
	return out
}

// Normalize runs a single word through the pipeline. It returns "" for
// words that are dropped (too short, stop-words).
func Normalize(word string) string {
	word = strings.ToLower(word)
	if len(word) < 2 {
		return ""
	}
	if _, isStop := stopWords[word]; isStop {
		return ""
	}
	return stem(word)
}

// NormalizePrefix lower-cases a wildcard prefix without stemming it, so
// "instal*" still reaches "install" and "installation".
func NormalizePrefix(word string) string {
	return strings.ToLower(word)
}

// Keywords splits a free-text keyword list on commas and whitespace,
// dropping empties. Case is preserved for display.
func Keywords(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func split(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	for _, rule := range stemRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
