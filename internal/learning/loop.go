// Package learning owns the live model snapshot and the retraining
// lifecycle: counting feedback events, rebuilding the vector index and
// classifier ensemble over the full case set, and atomically swapping
// the result in while queries keep serving from the old snapshot.
package learning

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/classifier"
	"github.com/kb-advisor/backend/internal/index"
	"github.com/kb-advisor/backend/internal/metrics"
	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/pkg/logger"
	"github.com/kb-advisor/backend/pkg/retry"
)

// ErrInsufficientData signals a retraining pass that could not run
// because the corpus is below the minimum. The previous snapshot
// stays live; this is reported, never fatal.
var ErrInsufficientData = errors.New("not enough cases to train")

// CaseSource supplies the full current case set on demand for
// (re)training. The persistence layer implements it.
type CaseSource interface {
	ListCases(ctx context.Context) ([]models.Case, error)
}

type Config struct {
	MinTrainingCases    int
	RetrainThreshold    int
	DisagreementPenalty float64
	SnapshotPath        string
}

// Loop coordinates retraining. Readers call Current and get one
// immutable snapshot for the whole request; they never observe a
// partial update because the swap is a single pointer store.
type Loop struct {
	cfg    Config
	source CaseSource

	current atomic.Pointer[Snapshot]

	// retrainMu serializes training passes; pending coalesces triggers
	// that arrive mid-retrain into one follow-up pass.
	retrainMu sync.Mutex
	pending   atomic.Bool

	feedbackSince atomic.Int64
	retrainCount  atomic.Int64
	lastRetrain   atomic.Pointer[time.Time]
}

// NewLoop restores the persisted snapshot when one exists, otherwise
// starts cold with untrained models.
func NewLoop(cfg Config, source CaseSource) *Loop {
	l := &Loop{cfg: cfg, source: source}

	snap, err := loadSnapshot(cfg.SnapshotPath)
	if err != nil {
		logger.Warn("Failed to load model snapshot, starting cold", zap.Error(err))
	}
	if snap == nil {
		snap = emptySnapshot(cfg.DisagreementPenalty)
	} else {
		logger.Info("Model snapshot restored",
			zap.Int("version", snap.Version),
			zap.Int("case_count", snap.CaseCount),
			zap.Time("trained_at", snap.TrainedAt),
		)
	}
	l.current.Store(snap)
	return l
}

// Current returns the live snapshot. The returned value is immutable.
func (l *Loop) Current() *Snapshot {
	return l.current.Load()
}

// NoteFeedback counts one feedback event and reports whether the
// retrain threshold has been reached.
func (l *Loop) NoteFeedback() bool {
	return l.feedbackSince.Add(1) >= int64(l.cfg.RetrainThreshold)
}

// NoteCaseAdded reports whether the corpus just crossed the minimum
// training size for the first time, which also triggers retraining.
func (l *Loop) NoteCaseAdded(totalCases int) bool {
	return !l.Current().Trained() && totalCases >= l.cfg.MinTrainingCases
}

// RetrainAsync runs Retrain on a background goroutine so suggestion
// serving never waits on training.
func (l *Loop) RetrainAsync(ctx context.Context) {
	go func() {
		if err := l.Retrain(ctx); err != nil && !errors.Is(err, ErrInsufficientData) {
			logger.Error("Background retraining failed", zap.Error(err))
		}
	}()
}

// Retrain runs a full batch rebuild over the entire current case set
// and atomically replaces the live snapshot. Concurrent calls
// coalesce: a trigger arriving mid-retrain schedules exactly one
// follow-up pass instead of queueing indefinitely.
//
// The flag is raised before the lock is tried and every lock holder
// re-checks it after unlocking, so a trigger that loses the lock race
// is always picked up by whichever goroutine holds or next takes it.
func (l *Loop) Retrain(ctx context.Context) error {
	l.pending.Store(true)

	var lastErr error
	for l.pending.Load() {
		if !l.retrainMu.TryLock() {
			// The holder re-checks the flag on its way out.
			return nil
		}
		if l.pending.Swap(false) {
			lastErr = l.retrainOnce(ctx)
		}
		l.retrainMu.Unlock()
	}
	return lastErr
}

func (l *Loop) retrainOnce(ctx context.Context) error {
	start := time.Now()

	cases, err := l.source.ListCases(ctx)
	if err != nil {
		metrics.RetrainTotal.WithLabelValues("error").Inc()
		return err
	}
	if len(cases) < l.cfg.MinTrainingCases {
		metrics.RetrainTotal.WithLabelValues("insufficient_data").Inc()
		logger.Info("Skipping retraining, not enough cases",
			zap.Int("cases", len(cases)),
			zap.Int("min", l.cfg.MinTrainingCases),
		)
		return ErrInsufficientData
	}

	idx := index.Fit(cases, l.cfg.MinTrainingCases)
	ens := classifier.Fit(cases, l.cfg.MinTrainingCases, l.cfg.DisagreementPenalty)

	old := l.Current()
	snap := &Snapshot{
		Index:             idx,
		Classifier:        ens,
		TrainedAt:         start,
		CaseCount:         len(cases),
		PerSystemAccuracy: ens.TrainAccuracy,
		Version:           old.Version + 1,
	}

	l.current.Store(snap)
	l.feedbackSince.Store(0)
	l.retrainCount.Add(1)
	now := time.Now()
	l.lastRetrain.Store(&now)

	metrics.RetrainTotal.WithLabelValues("success").Inc()
	metrics.RetrainDuration.Observe(time.Since(start).Seconds())
	metrics.TrainingCases.Set(float64(len(cases)))

	if err := l.persist(ctx, snap); err != nil {
		// The in-memory swap already happened; a failed write only
		// costs the warm start.
		logger.Warn("Failed to persist model snapshot", zap.Error(err))
	}

	logger.Info("Retraining complete",
		zap.Int("version", snap.Version),
		zap.Int("case_count", snap.CaseCount),
		zap.Bool("classifier_trained", ens.IsTrained()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (l *Loop) persist(ctx context.Context, snap *Snapshot) error {
	cfg := retry.DefaultConfig()
	cfg.Logger = logger.Log
	return retry.Do(ctx, cfg, func() error {
		return saveSnapshot(snap, l.cfg.SnapshotPath)
	})
}

// Stats reports the loop-owned observability fields. The caller fills
// in corpus totals from storage.
func (l *Loop) Stats() models.LearningStats {
	snap := l.Current()
	stats := models.LearningStats{
		PerSystemAccuracy: snap.PerSystemAccuracy,
		RetrainCount:      int(l.retrainCount.Load()),
		FeedbackSince:     int(l.feedbackSince.Load()),
		Trained:           snap.Trained(),
	}
	if t := l.lastRetrain.Load(); t != nil {
		stats.LastRetrainAt = t
	} else if !snap.TrainedAt.IsZero() {
		restored := snap.TrainedAt
		stats.LastRetrainAt = &restored
	}
	return stats
}
