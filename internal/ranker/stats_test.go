package ranker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFeedbackRejectsMalformedRating(t *testing.T) {
	s := NewStatsStore()

	for _, rating := range []int{0, -1, 6, 100} {
		_, err := s.RecordFeedback(1, rating)
		assert.ErrorIs(t, err, ErrMalformedRating)
	}

	_, ok := s.Get(1)
	assert.False(t, ok)
}

func TestRecordFeedbackIncrementalMean(t *testing.T) {
	s := NewStatsStore()

	// Three top ratings then one bottom rating: mean over the
	// normalized values {1, 1, 1, 0} is exactly 0.75.
	for i := 0; i < 3; i++ {
		_, err := s.RecordFeedback(7, 5)
		require.NoError(t, err)
	}
	stats, err := s.RecordFeedback(7, 1)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 0.75, stats.Effectiveness, 1e-12)
}

func TestRecordFeedbackNormalization(t *testing.T) {
	s := NewStatsStore()

	stats, err := s.RecordFeedback(1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stats.Effectiveness, 1e-12)

	stats, err = s.RecordFeedback(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.Effectiveness)

	stats, err = s.RecordFeedback(3, 5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats.Effectiveness)
}

func TestSeedRestoresAggregates(t *testing.T) {
	s := NewStatsStore()
	s.Seed(9, 0.8, 4)

	stats, ok := s.Get(9)
	require.True(t, ok)
	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 0.8, stats.Effectiveness, 1e-12)

	// The next rating continues the restored series.
	stats, err := s.RecordFeedback(9, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Count)
	assert.InDelta(t, (0.8*4+1.0)/5, stats.Effectiveness, 1e-12)
}

func TestConcurrentFeedbackLosesNoUpdates(t *testing.T) {
	s := NewStatsStore()

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := s.RecordFeedback(1, 5)
				assert.NoError(t, err)
				_, err = s.RecordFeedback(int64(2+i%3), 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	stats, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, writers*perWriter, stats.Count)
	assert.InDelta(t, 1.0, stats.Effectiveness, 1e-9)

	assert.Equal(t, 2*writers*perWriter, s.TotalFeedback())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStatsStore()
	_, err := s.RecordFeedback(1, 5)
	require.NoError(t, err)

	snap := s.Snapshot()
	snap[1] = Stats{Effectiveness: 0.0, Count: 99}

	stats, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1.0, stats.Effectiveness)
}
