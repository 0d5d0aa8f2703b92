// Package ranker scores candidate documents with a field-weighted BM25.
// Each field (title, keywords, body) is length-normalised against its own
// corpus average and multiplied by its boost before summing.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Boosts weights each index field. Title matches outrank keyword matches,
// which outrank body matches.
type Boosts [index.NumFields]float64

func DefaultBoosts() Boosts {
	return Boosts{
		index.FieldTitle:    10,
		index.FieldKeywords: 5,
		index.FieldBody:     1,
	}
}

type ScoredDoc struct {
	DocID    string  `json:"doc_id"`
	Score    float64 `json:"score"`
	Sequence uint64  `json:"-"`
}

// TermPostings is the evidence for one query term. Weight scales its
// contribution; prefix expansions use less than 1.
type TermPostings struct {
	Term     string
	Postings index.PostingList
	Weight   float64
}

// Rank scores every document that appears in terms and is in candidates
// (nil candidates means all). Results are ordered by descending score with
// ties broken by index insertion order.
func Rank(
	terms []TermPostings,
	candidates map[string]struct{},
	corpus index.CorpusStats,
	docStats func(docID string) (index.DocStats, bool),
	boosts Boosts,
	limit int,
) []ScoredDoc {
	scores := make(map[string]float64)
	stats := make(map[string]index.DocStats)
	for _, tp := range terms {
		idf := computeIDF(int64(corpus.DocCount), int64(len(tp.Postings)))
		for _, posting := range tp.Postings {
			if candidates != nil {
				if _, ok := candidates[posting.DocID]; !ok {
					continue
				}
			}
			ds, ok := stats[posting.DocID]
			if !ok {
				if ds, ok = docStats(posting.DocID); !ok {
					continue
				}
				stats[posting.DocID] = ds
			}
			var score float64
			for f := index.Field(0); f < index.NumFields; f++ {
				tf := posting.Frequency[f]
				if tf == 0 {
					continue
				}
				score += boosts[f] * computeTFNorm(float64(tf), float64(ds.Lengths[f]), corpus.AvgLength[f])
			}
			scores[posting.DocID] += tp.Weight * idf * score
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{
			DocID:    docID,
			Score:    math.Round(score*10000) / 10000,
			Sequence: stats[docID].Sequence,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Sequence < result[j].Sequence
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// computeIDF never reaches zero, so a term present in every document still
// contributes and field boosts decide the order.
func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + math.Abs(numerator/denominator))
}

func computeTFNorm(termFreq float64, fieldLength float64, avgFieldLength float64) float64 {
	if avgFieldLength == 0 {
		return 0
	}
	lengthRatio := fieldLength / avgFieldLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
