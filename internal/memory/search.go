package memory

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// DefaultTopK is the number of records retrieved per question.
const DefaultTopK = 10

// SearchResult is one ranked record.
type SearchResult struct {
	Index int     `json:"index"` // position in the store
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|). A zero vector yields
// NaN, which is returned as is. Vectors of different length yield NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every record against query and returns at most k results,
// highest score first. Equal scores keep store order; NaN scores sort
// last. k <= 0 means DefaultTopK.
func Rank(query []float32, recs []Record, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	results := make([]SearchResult, 0, len(recs))
	for i, r := range recs {
		if len(r.Vector) != len(query) {
			return nil, fmt.Errorf("%w: query has %d dimensions, record %d has %d",
				ErrDimensionMismatch, len(query), i+1, len(r.Vector))
		}
		results = append(results, SearchResult{
			Index: i,
			Score: CosineSimilarity(query, r.Vector),
			Text:  r.Text,
		})
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Texts returns the text of each result, in order.
func Texts(results []SearchResult) []string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts
}
