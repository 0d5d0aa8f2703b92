// Package parser turns a free-text search box query into a QueryPlan.
//
// Bare words are optional: a document matching any of them is a candidate.
// A leading '+' makes a word required and a leading '-' excludes documents
// containing it. A trailing '*' matches every indexed term with that
// prefix. Words such as AND or NOT are ordinary words, so pasting an
// article title into the box always finds that article.
package parser

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/tokenizer"
)

// Presence says how a clause constrains the candidate set.
type Presence int

const (
	Optional Presence = iota
	Required
	Prohibited
)

type Clause struct {
	Term     string
	Presence Presence
	Prefix   bool
}

type QueryPlan struct {
	Clauses  []Clause
	RawQuery string
}

// Empty reports whether the plan can match nothing: it has no optional or
// required clause. A purely negative query never returns the whole index.
func (p *QueryPlan) Empty() bool {
	for _, c := range p.Clauses {
		if c.Presence != Prohibited {
			return false
		}
	}
	return true
}

// Terms lists the positive clause terms in query order.
func (p *QueryPlan) Terms() []string {
	out := make([]string, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		if c.Presence != Prohibited {
			out = append(out, c.Term)
		}
	}
	return out
}

// Normalized renders the plan canonically; equivalent queries render the
// same string, which makes it usable as a cache key.
func (p *QueryPlan) Normalized() string {
	var b strings.Builder
	for i, c := range p.Clauses {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c.Presence {
		case Required:
			b.WriteByte('+')
		case Prohibited:
			b.WriteByte('-')
		}
		b.WriteString(c.Term)
		if c.Prefix {
			b.WriteByte('*')
		}
	}
	return b.String()
}

type word struct {
	text     string
	presence Presence
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Clauses:  make([]Clause, 0),
		RawQuery: query,
	}
	words := make([]word, 0)
	for _, w := range strings.Fields(query) {
		presence := Optional
		switch {
		case strings.HasPrefix(w, "+"):
			presence = Required
			w = w[1:]
		case strings.HasPrefix(w, "-"):
			presence = Prohibited
			w = w[1:]
		}
		words = append(words, word{text: w, presence: presence})
	}

	seen := make(map[Clause]struct{})
	add := func(c Clause) {
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		plan.Clauses = append(plan.Clauses, c)
	}
	for _, w := range words {
		prefix := strings.HasSuffix(w.text, "*") && len(strings.TrimRight(w.text, "*")) > 0
		for _, c := range clausesFor(w.text, w.presence, prefix) {
			add(c)
		}
	}
	// Same fallback as the index: when no positive word survives
	// tokenizing, match the lower-cased words as typed.
	if plan.Empty() {
		for _, w := range words {
			if w.presence == Prohibited {
				continue
			}
			for _, t := range tokenizer.Raw(strings.TrimRight(w.text, "*")) {
				add(Clause{Term: t.Term, Presence: w.presence})
			}
		}
	}
	return plan
}

// clausesFor splits one query word into clauses. Hyphenated or dotted words
// yield one clause per token; only the last token keeps the prefix flag.
func clausesFor(word string, presence Presence, prefix bool) []Clause {
	if !prefix {
		tokens := tokenizer.Tokenize(word)
		out := make([]Clause, 0, len(tokens))
		for _, t := range tokens {
			out = append(out, Clause{Term: t.Term, Presence: presence})
		}
		return out
	}
	parts := strings.FieldsFunc(strings.TrimRight(word, "*"), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return nil
	}
	out := make([]Clause, 0, len(parts))
	for _, part := range parts[:len(parts)-1] {
		if term := tokenizer.Normalize(part); term != "" {
			out = append(out, Clause{Term: term, Presence: presence})
		}
	}
	last := tokenizer.NormalizePrefix(parts[len(parts)-1])
	return append(out, Clause{Term: last, Presence: presence, Prefix: true})
}
