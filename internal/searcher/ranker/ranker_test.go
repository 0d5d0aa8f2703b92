package ranker

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posting(id string, title, keywords, body int) index.Posting {
	p := index.Posting{DocID: id}
	p.Frequency[index.FieldTitle] = title
	p.Frequency[index.FieldKeywords] = keywords
	p.Frequency[index.FieldBody] = body
	return p
}

func statsOf(m map[string]index.DocStats) func(string) (index.DocStats, bool) {
	return func(id string) (index.DocStats, bool) {
		ds, ok := m[id]
		return ds, ok
	}
}

func uniformCorpus(n int) index.CorpusStats {
	return index.CorpusStats{DocCount: n, AvgLength: [index.NumFields]float64{3, 2, 20}}
}

func TestTitleMatchOutranksBodyMatch(t *testing.T) {
	stats := map[string]index.DocStats{
		"body-only": {DocID: "body-only", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 0},
		"title":     {DocID: "title", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 1},
	}
	terms := []TermPostings{{
		Term:     "vpn",
		Weight:   1,
		Postings: index.PostingList{posting("body-only", 0, 0, 1), posting("title", 1, 0, 0)},
	}}
	got := Rank(terms, nil, uniformCorpus(2), statsOf(stats), DefaultBoosts(), 0)
	require.Len(t, got, 2)
	assert.Equal(t, "title", got[0].DocID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestTermInEveryDocumentStillScores(t *testing.T) {
	stats := map[string]index.DocStats{"only": {DocID: "only", Lengths: [index.NumFields]int{3, 2, 20}}}
	terms := []TermPostings{{Term: "x", Weight: 1, Postings: index.PostingList{posting("only", 1, 0, 0)}}}
	got := Rank(terms, nil, uniformCorpus(1), statsOf(stats), DefaultBoosts(), 0)
	require.Len(t, got, 1)
	assert.Greater(t, got[0].Score, 0.0)
}

func TestTiesBreakByInsertionOrder(t *testing.T) {
	stats := map[string]index.DocStats{
		"z-first":  {DocID: "z-first", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 1},
		"a-second": {DocID: "a-second", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 2},
		"m-zeroth": {DocID: "m-zeroth", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 0},
	}
	terms := []TermPostings{{
		Term:   "same",
		Weight: 1,
		Postings: index.PostingList{
			posting("a-second", 1, 0, 0),
			posting("z-first", 1, 0, 0),
			posting("m-zeroth", 1, 0, 0),
		},
	}}
	got := Rank(terms, nil, uniformCorpus(3), statsOf(stats), DefaultBoosts(), 0)
	assert.Equal(t, []string{"m-zeroth", "z-first", "a-second"}, docIDs(got))
}

func TestCandidatesAndLimit(t *testing.T) {
	stats := map[string]index.DocStats{
		"a": {DocID: "a", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 0},
		"b": {DocID: "b", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 1},
		"c": {DocID: "c", Lengths: [index.NumFields]int{3, 2, 20}, Sequence: 2},
	}
	terms := []TermPostings{{
		Term:     "t",
		Weight:   1,
		Postings: index.PostingList{posting("a", 1, 0, 0), posting("b", 2, 0, 0), posting("c", 3, 0, 0)},
	}}
	got := Rank(terms, map[string]struct{}{"a": {}, "c": {}}, uniformCorpus(3), statsOf(stats), DefaultBoosts(), 1)
	assert.Equal(t, []string{"c"}, docIDs(got))
}

func TestRemovedDocumentIsSkipped(t *testing.T) {
	terms := []TermPostings{{Term: "t", Weight: 1, Postings: index.PostingList{posting("gone", 1, 0, 0)}}}
	got := Rank(terms, nil, uniformCorpus(1), statsOf(nil), DefaultBoosts(), 0)
	assert.Empty(t, got)
}

func docIDs(docs []ScoredDoc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.DocID
	}
	return out
}
