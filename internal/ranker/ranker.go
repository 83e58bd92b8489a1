// Package ranker re-orders solution candidates by demonstrated
// effectiveness instead of textual similarity alone, and owns the
// aggregated per-case feedback statistics that drive it.
package ranker

import (
	"errors"
	"sort"
	"time"

	"github.com/kb-advisor/backend/internal/storage/models"
)

// ErrMalformedRating rejects ratings outside the fixed ordinal set at
// the boundary, before they can reach the stats.
var ErrMalformedRating = errors.New("rating outside the 1-5 ordinal scale")

// NeutralEffectiveness is the prior for cases with no feedback yet, so
// untested but textually similar cases are not buried by proven ones.
const NeutralEffectiveness = 0.5

// Stats is the aggregated feedback view for one case.
type Stats struct {
	Effectiveness float64 // normalized 0-1 running mean
	Count         int
}

// Weights are the documented configuration constants of the rank key
// w1*similarity + w2*effectiveness - w3*staleness.
type Weights struct {
	Similarity           float64 // w1
	Effectiveness        float64 // w2
	Staleness            float64 // w3
	StalenessHorizonDays int
}

// Rank computes the weighted key for every candidate and returns them
// in descending key order with Rank numbers assigned. It never drops a
// candidate, only reorders. Ties break by higher raw similarity, then
// by lower case ID, which makes the order total.
func Rank(candidates []models.SolutionSuggestion, stats map[int64]Stats, w Weights, now time.Time) []models.SolutionSuggestion {
	ranked := make([]models.SolutionSuggestion, len(candidates))
	copy(ranked, candidates)

	keys := make(map[int64]float64, len(ranked))
	for _, c := range ranked {
		effectiveness := NeutralEffectiveness
		if s, ok := stats[c.CaseID]; ok && s.Count > 0 {
			effectiveness = s.Effectiveness
		}
		keys[c.CaseID] = w.Similarity*c.Similarity +
			w.Effectiveness*effectiveness -
			w.Staleness*staleness(c.CreatedAt, now, w.StalenessHorizonDays)
	}

	sort.Slice(ranked, func(i, j int) bool {
		ki, kj := keys[ranked[i].CaseID], keys[ranked[j].CaseID]
		if ki != kj {
			return ki > kj
		}
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].CaseID < ranked[j].CaseID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// staleness grows linearly with case age and saturates at the horizon,
// slightly favoring recently validated solutions.
func staleness(createdAt, now time.Time, horizonDays int) float64 {
	if horizonDays <= 0 || createdAt.IsZero() {
		return 0
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays <= 0 {
		return 0
	}
	s := ageDays / float64(horizonDays)
	if s > 1 {
		s = 1
	}
	return s
}
