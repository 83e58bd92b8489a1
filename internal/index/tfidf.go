// Package index implements the TF-IDF vector index used for case
// retrieval. The whole index lives in memory inside a model snapshot;
// queries never touch the network or retrain anything.
package index

import (
	"math"
	"sort"
	"time"

	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/internal/text"
)

// State is the fitted index: vocabulary, idf weights and one
// L2-normalized sparse vector per case. It is immutable after Fit and
// safe for concurrent readers.
type State struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	Docs       []DocVector    `json:"docs"`
	CaseCount  int            `json:"case_count"`
}

// DocVector is one indexed case. Weights maps vocabulary columns to
// normalized tf-idf weights, so cosine similarity is a plain sparse
// dot product.
type DocVector struct {
	CaseID    int64           `json:"case_id"`
	CreatedAt time.Time       `json:"created_at"`
	Weights   map[int]float64 `json:"weights"`
}

// Match is one query result.
type Match struct {
	CaseID int64
	Score  float64
}

// Fit builds the index over the concatenated problem and solution text
// of every case. Fewer than minCases yields the empty state: queries
// against it return no matches rather than erroring.
func Fit(cases []models.Case, minCases int) *State {
	if len(cases) < minCases {
		return &State{}
	}

	docTerms := make([]map[string]int, len(cases))
	df := make(map[string]int)
	for i, c := range cases {
		counts := text.TermCounts(c.ProblemDescription + " " + c.Solution)
		docTerms[i] = counts
		for term := range counts {
			df[term]++
		}
	}

	vocab := make(map[string]int, len(df))
	idf := make([]float64, 0, len(df))
	n := float64(len(cases))
	for term, freq := range df {
		vocab[term] = len(idf)
		// Smoothed idf keeps terms seen in every document from zeroing
		// out entirely.
		idf = append(idf, math.Log((1+n)/(1+float64(freq)))+1)
	}

	docs := make([]DocVector, 0, len(cases))
	for i, c := range cases {
		weights := vectorize(docTerms[i], vocab, idf)
		docs = append(docs, DocVector{
			CaseID:    c.ID,
			CreatedAt: c.CreatedAt,
			Weights:   weights,
		})
	}

	return &State{
		Vocabulary: vocab,
		IDF:        idf,
		Docs:       docs,
		CaseCount:  len(cases),
	}
}

// Empty reports whether the state was built below the minimum case
// count (or never built at all).
func (s *State) Empty() bool {
	return s == nil || len(s.Docs) == 0
}

// Query projects the text into the fitted vector space and returns the
// top-k cases by cosine similarity. Out-of-vocabulary terms contribute
// zero weight. Ties break by more recent case first, then by lower ID.
func (s *State) Query(queryText string, k int) []Match {
	if s.Empty() || k <= 0 {
		return nil
	}

	queryVec := vectorize(text.TermCounts(queryText), s.Vocabulary, s.IDF)
	if len(queryVec) == 0 {
		return nil
	}

	type scored struct {
		doc   *DocVector
		score float64
	}
	results := make([]scored, 0, len(s.Docs))
	for i := range s.Docs {
		score := dot(queryVec, s.Docs[i].Weights)
		if score <= 0 {
			continue
		}
		results = append(results, scored{doc: &s.Docs[i], score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if !results[i].doc.CreatedAt.Equal(results[j].doc.CreatedAt) {
			return results[i].doc.CreatedAt.After(results[j].doc.CreatedAt)
		}
		return results[i].doc.CaseID < results[j].doc.CaseID
	})

	if len(results) > k {
		results = results[:k]
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{CaseID: r.doc.CaseID, Score: r.score}
	}
	return matches
}

// Similarity is the cosine similarity of two raw texts over plain term
// counts. It is symmetric and 1.0 for identical non-empty texts.
func Similarity(a, b string) float64 {
	ca := text.TermCounts(a)
	cb := text.TermCounts(b)

	var dotProduct, normA, normB float64
	for term, fa := range ca {
		normA += float64(fa) * float64(fa)
		if fb, ok := cb[term]; ok {
			dotProduct += float64(fa) * float64(fb)
		}
	}
	for _, fb := range cb {
		normB += float64(fb) * float64(fb)
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// vectorize builds an L2-normalized sparse tf-idf vector. Terms outside
// the vocabulary are dropped.
func vectorize(counts map[string]int, vocab map[string]int, idf []float64) map[int]float64 {
	weights := make(map[int]float64)
	var norm float64
	for term, tf := range counts {
		col, ok := vocab[term]
		if !ok {
			continue
		}
		w := float64(tf) * idf[col]
		weights[col] = w
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for col, w := range weights {
		weights[col] = w / norm
	}
	return weights
}

// dot multiplies two sparse vectors, iterating the smaller one.
func dot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for col, wa := range a {
		if wb, ok := b[col]; ok {
			sum += wa * wb
		}
	}
	return sum
}
