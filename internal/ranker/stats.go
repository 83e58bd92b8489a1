package ranker

import (
	"sync"

	"github.com/kb-advisor/backend/internal/storage/models"
)

// StatsStore holds the aggregated effectiveness statistics per case.
// RecordFeedback is the only writer; it is mutually exclusive per case
// so concurrent ratings of the same case never lose updates, while
// ratings of different cases proceed independently.
type StatsStore struct {
	mu    sync.RWMutex // guards the map structure only
	stats map[int64]*caseStats
}

type caseStats struct {
	mu    sync.Mutex
	mean  float64
	count int
}

func NewStatsStore() *StatsStore {
	return &StatsStore{stats: make(map[int64]*caseStats)}
}

// Seed installs an aggregate loaded from persistent storage at
// startup. It is not safe to call concurrently with RecordFeedback.
func (s *StatsStore) Seed(caseID int64, mean float64, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[caseID] = &caseStats{mean: mean, count: count}
}

// RecordFeedback folds one rating into the case's running average
// using a plain incremental mean: every rating counts equally, no
// decay. It returns the updated aggregate.
func (s *StatsStore) RecordFeedback(caseID int64, rating int) (Stats, error) {
	if !models.ValidRating(rating) {
		return Stats{}, ErrMalformedRating
	}
	normalized := float64(rating-models.RatingMin) / float64(models.RatingMax-models.RatingMin)

	s.mu.Lock()
	cs, ok := s.stats[caseID]
	if !ok {
		cs = &caseStats{}
		s.stats[caseID] = cs
	}
	s.mu.Unlock()

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.mean += (normalized - cs.mean) / float64(cs.count+1)
	cs.count++
	return Stats{Effectiveness: cs.mean, Count: cs.count}, nil
}

// Get returns the aggregate for one case.
func (s *StatsStore) Get(caseID int64) (Stats, bool) {
	s.mu.RLock()
	cs, ok := s.stats[caseID]
	s.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return Stats{Effectiveness: cs.mean, Count: cs.count}, true
}

// Snapshot copies the current aggregates for a ranking pass.
func (s *StatsStore) Snapshot() map[int64]Stats {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.stats))
	refs := make([]*caseStats, 0, len(s.stats))
	for id, cs := range s.stats {
		ids = append(ids, id)
		refs = append(refs, cs)
	}
	s.mu.RUnlock()

	out := make(map[int64]Stats, len(ids))
	for i, cs := range refs {
		cs.mu.Lock()
		out[ids[i]] = Stats{Effectiveness: cs.mean, Count: cs.count}
		cs.mu.Unlock()
	}
	return out
}

// TotalFeedback sums feedback counts across all cases.
func (s *StatsStore) TotalFeedback() int {
	total := 0
	for _, st := range s.Snapshot() {
		total += st.Count
	}
	return total
}
