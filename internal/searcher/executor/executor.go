// Package executor evaluates a parsed QueryPlan against an index: it builds
// the candidate set from required, optional and prohibited clauses and hands
// the surviving postings to the ranker.
package executor

import (
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/searcher/ranker"
)

// prefixWeight scales terms reached through a wildcard expansion.
const prefixWeight = 0.5

// PostingSource is the read side of an index.
type PostingSource interface {
	Postings(term string) index.PostingList
	TermsWithPrefix(prefix string) []string
	Stats(docID string) (index.DocStats, bool)
	Corpus() index.CorpusStats
}

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

// Execute runs plan against src. An empty plan yields an empty result, never
// the whole index.
func Execute(src PostingSource, plan *parser.QueryPlan, boosts ranker.Boosts, limit int) *SearchResult {
	result := &SearchResult{
		Query:     plan.RawQuery,
		Results:   []ranker.ScoredDoc{},
		TermStats: make(map[string]int),
	}
	if plan.Empty() {
		return result
	}

	var scoring []ranker.TermPostings
	var required []map[string]struct{}
	optional := make(map[string]struct{})
	excluded := make(map[string]struct{})
	hasOptional := false

	for _, clause := range plan.Clauses {
		expanded := expand(src, clause)
		docs := make(map[string]struct{})
		for _, tp := range expanded {
			for _, p := range tp.Postings {
				docs[p.DocID] = struct{}{}
			}
		}
		switch clause.Presence {
		case parser.Prohibited:
			for id := range docs {
				excluded[id] = struct{}{}
			}
			continue
		case parser.Required:
			required = append(required, docs)
		case parser.Optional:
			hasOptional = true
			for id := range docs {
				optional[id] = struct{}{}
			}
		}
		result.TermStats[clause.Term] = len(docs)
		scoring = append(scoring, expanded...)
	}

	var candidates map[string]struct{}
	switch {
	case len(required) > 0:
		candidates = intersect(required)
	case hasOptional:
		candidates = optional
	default:
		candidates = make(map[string]struct{})
	}
	for id := range excluded {
		delete(candidates, id)
	}

	result.TotalHits = len(candidates)
	if len(candidates) == 0 {
		return result
	}
	result.Results = ranker.Rank(scoring, candidates, src.Corpus(), src.Stats, boosts, limit)
	return result
}

func expand(src PostingSource, clause parser.Clause) []ranker.TermPostings {
	if !clause.Prefix {
		postings := src.Postings(clause.Term)
		if len(postings) == 0 {
			return nil
		}
		return []ranker.TermPostings{{Term: clause.Term, Postings: postings, Weight: 1}}
	}
	terms := src.TermsWithPrefix(clause.Term)
	out := make([]ranker.TermPostings, 0, len(terms))
	for _, term := range terms {
		weight := prefixWeight
		if term == clause.Term {
			weight = 1
		}
		out = append(out, ranker.TermPostings{Term: term, Postings: src.Postings(term), Weight: weight})
	}
	return out
}

func intersect(sets []map[string]struct{}) map[string]struct{} {
	shortest := 0
	for i, s := range sets {
		if len(s) < len(sets[shortest]) {
			shortest = i
		}
	}
	candidates := make(map[string]struct{}, len(sets[shortest]))
	for id := range sets[shortest] {
		candidates[id] = struct{}{}
	}
	for i, s := range sets {
		if i == shortest {
			continue
		}
		for id := range candidates {
			if _, ok := s[id]; !ok {
				delete(candidates, id)
			}
		}
	}
	return candidates
}
