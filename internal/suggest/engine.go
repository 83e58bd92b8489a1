package suggest

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/classifier"
	"github.com/kb-advisor/backend/internal/extract"
	"github.com/kb-advisor/backend/internal/ingest"
	"github.com/kb-advisor/backend/internal/learning"
	"github.com/kb-advisor/backend/internal/metrics"
	"github.com/kb-advisor/backend/internal/ranker"
	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/pkg/logger"
	"github.com/kb-advisor/backend/pkg/utils"
)

// candidateFactor widens the index query so ranking has more to work
// with than the final page size.
const candidateFactor = 3

// Store is the persistence surface the engine needs.
type Store interface {
	GetCase(ctx context.Context, id int64) (*models.Case, error)
	InsertCase(ctx context.Context, cs *models.Case) error
	CountCases(ctx context.Context) (int, error)
	CountFeedback(ctx context.Context) (int, error)
	InsertFeedback(ctx context.Context, fb *models.CaseFeedback, newMean float64, newCount int) error
	InsertSuggestionRecord(ctx context.Context, rec *models.SuggestionRecord) error
}

// Cache is the optional suggestion cache. A nil Cache disables caching.
type Cache interface {
	GetSuggestions(ctx context.Context, key string) ([]models.SolutionSuggestion, bool)
	SetSuggestions(ctx context.Context, key string, suggestions []models.SolutionSuggestion)
	Flush(ctx context.Context)
}

type Config struct {
	Weights        ranker.Weights
	MaxSuggestions int
}

// Engine ties retrieval, classification, ranking and the learning loop
// into the suggest and feedback operations.
type Engine struct {
	store     Store
	cache     Cache
	loop      *learning.Loop
	stats     *ranker.StatsStore
	extractor *extract.Extractor
	cfg       Config
}

func NewEngine(store Store, cache Cache, loop *learning.Loop, stats *ranker.StatsStore, cfg Config) *Engine {
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 5
	}
	return &Engine{
		store:     store,
		cache:     cache,
		loop:      loop,
		stats:     stats,
		extractor: extract.NewExtractor(),
		cfg:       cfg,
	}
}

// Suggest returns ranked solution suggestions for a problem
// description. An untrained model or a blank query yields an empty
// list, not an error.
func (e *Engine) Suggest(ctx context.Context, problemText string) ([]models.SolutionSuggestion, error) {
	start := time.Now()
	problemText = strings.TrimSpace(problemText)
	if problemText == "" {
		metrics.SuggestTotal.WithLabelValues("empty_query").Inc()
		return []models.SolutionSuggestion{}, nil
	}

	cacheKey := utils.QueryKey(problemText)
	if e.cache != nil {
		if cached, ok := e.cache.GetSuggestions(ctx, cacheKey); ok {
			metrics.SuggestTotal.WithLabelValues("cache_hit").Inc()
			metrics.SuggestDuration.Observe(time.Since(start).Seconds())
			return cached, nil
		}
	}

	snap := e.loop.Current()
	system, confidence := e.classify(snap, problemText)
	metrics.ClassifierConfidence.Observe(confidence)

	suggestions := []models.SolutionSuggestion{}
	if snap.Trained() {
		candidates, err := e.collectCandidates(ctx, snap, problemText, confidence)
		if err != nil {
			metrics.SuggestTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		ranked := ranker.Rank(candidates, e.stats.Snapshot(), e.cfg.Weights, time.Now())
		if len(ranked) > e.cfg.MaxSuggestions {
			ranked = ranked[:e.cfg.MaxSuggestions]
		}
		suggestions = ranked
	}

	latency := time.Since(start)
	metrics.SuggestTotal.WithLabelValues("ok").Inc()
	metrics.SuggestDuration.Observe(latency.Seconds())
	metrics.SuggestResultCount.Observe(float64(len(suggestions)))

	if e.cache != nil && len(suggestions) > 0 {
		e.cache.SetSuggestions(ctx, cacheKey, suggestions)
	}
	e.logSuggestion(ctx, problemText, system, confidence, len(suggestions), latency)

	logger.Debug("Suggest served",
		zap.String("system", system),
		zap.Float64("confidence", confidence),
		zap.Int("results", len(suggestions)),
		zap.Duration("latency", latency),
	)
	return suggestions, nil
}

// classify runs the trained ensemble and falls back to the keyword
// catalog when the model is untrained or undecided.
func (e *Engine) classify(snap *learning.Snapshot, problemText string) (string, float64) {
	label, confidence := models.SystemUnknown, 0.0
	if snap.Trained() {
		label, confidence = snap.Classifier.Predict(problemText)
	}
	if label == models.SystemUnknown {
		if kwLabel, hits := classifier.KeywordSystem(problemText); hits > 0 {
			return kwLabel, math.Min(0.5, 0.2+0.1*float64(hits))
		}
	}
	return label, confidence
}

func (e *Engine) collectCandidates(ctx context.Context, snap *learning.Snapshot, problemText string, confidence float64) ([]models.SolutionSuggestion, error) {
	matches := snap.Index.Query(problemText, e.cfg.MaxSuggestions*candidateFactor)

	candidates := make([]models.SolutionSuggestion, 0, len(matches))
	for _, m := range matches {
		cs, err := e.store.GetCase(ctx, m.CaseID)
		if err != nil {
			// Deleted since the last retrain; skip until the
			// next refit drops it from the index.
			logger.Debug("Indexed case missing from storage", zap.Int64("case_id", m.CaseID), zap.Error(err))
			continue
		}
		candidates = append(candidates, models.SolutionSuggestion{
			CaseID:             cs.ID,
			ProblemDescription: cs.ProblemDescription,
			Solution:           cs.Solution,
			SystemType:         cs.SystemType,
			CreatedAt:          cs.CreatedAt,
			Similarity:         m.Score,
			Confidence:         e.blendConfidence(confidence, cs.ID),
		})
	}
	return candidates, nil
}

// blendConfidence folds the case's demonstrated effectiveness into the
// classifier's certainty, so suggestion confidence reflects feedback
// history and not just the system vote. Unrated cases carry the
// ranker's neutral prior.
func (e *Engine) blendConfidence(classifierConf float64, caseID int64) float64 {
	effectiveness := ranker.NeutralEffectiveness
	if st, ok := e.stats.Get(caseID); ok && st.Count > 0 {
		effectiveness = st.Effectiveness
	}
	return (classifierConf + effectiveness) / 2
}

// SubmitFeedback records a rating against a case, folds it into the
// effectiveness aggregate and nudges the learning loop.
func (e *Engine) SubmitFeedback(ctx context.Context, fb *models.CaseFeedback) error {
	if !models.ValidRating(fb.Rating) {
		return ranker.ErrMalformedRating
	}
	if _, err := e.store.GetCase(ctx, fb.CaseID); err != nil {
		return err
	}

	stats, err := e.stats.RecordFeedback(fb.CaseID, fb.Rating)
	if err != nil {
		return err
	}
	if err := e.store.InsertFeedback(ctx, fb, stats.Effectiveness, stats.Count); err != nil {
		return err
	}

	metrics.FeedbackTotal.WithLabelValues(fmt.Sprintf("%d", fb.Rating)).Inc()

	if e.loop.NoteFeedback() {
		e.invalidateCache(ctx)
		e.loop.RetrainAsync(ctx)
	}
	return nil
}

// CreateCase persists a case and triggers the initial fit once the
// corpus first reaches the training minimum.
func (e *Engine) CreateCase(ctx context.Context, cs *models.Case) error {
	if cs.SystemType == "" {
		cs.SystemType = models.SystemUnknown
	}
	if err := e.store.InsertCase(ctx, cs); err != nil {
		return err
	}

	total, err := e.store.CountCases(ctx)
	if err != nil {
		logger.Warn("Failed to count cases after insert", zap.Error(err))
		return nil
	}
	if e.loop.NoteCaseAdded(total) {
		e.invalidateCache(ctx)
		e.loop.RetrainAsync(ctx)
	}
	return nil
}

// IngestDocumentText turns an uploaded document into a draft case and
// persists it through the normal creation path.
func (e *Engine) IngestDocumentText(ctx context.Context, raw string) (*models.Case, error) {
	text, err := ingest.NormalizeDocument(raw)
	if err != nil {
		return nil, err
	}

	draft := e.extractor.ExtractCase(text)
	cs := &models.Case{
		ProblemDescription: draft.ProblemDescription,
		Solution:           draft.Solution,
		SystemType:         draft.SystemType,
		Tags:               []string{draft.ProblemCategory},
		CreatedAt:          time.Now(),
	}
	if err := e.CreateCase(ctx, cs); err != nil {
		return nil, err
	}

	metrics.DocumentsIngested.WithLabelValues(cs.SystemType).Inc()
	logger.Info("Document ingested as draft case",
		zap.Int64("case_id", cs.ID),
		zap.String("system", cs.SystemType),
		zap.String("category", draft.ProblemCategory),
	)
	return cs, nil
}

// ImportStructuredText bulk-imports a sectioned plain-text document.
// Each parsed section becomes a case through the normal creation path.
func (e *Engine) ImportStructuredText(ctx context.Context, raw string) ([]*models.Case, error) {
	return e.persistImported(ctx, ingest.ParseStructuredText(raw))
}

// ImportStructuredCSV bulk-imports a CSV export with a header row.
func (e *Engine) ImportStructuredCSV(ctx context.Context, raw string) ([]*models.Case, error) {
	parsed, err := ingest.ParseStructuredCSV(raw)
	if err != nil {
		return nil, err
	}
	return e.persistImported(ctx, parsed)
}

func (e *Engine) persistImported(ctx context.Context, parsed []ingest.StructuredCase) ([]*models.Case, error) {
	if len(parsed) == 0 {
		return nil, ingest.ErrNoCasesFound
	}

	imported := make([]*models.Case, 0, len(parsed))
	for _, sc := range parsed {
		cs := &models.Case{
			ProblemDescription: sc.Problem,
			Solution:           sc.Solution,
			SystemType:         sc.System,
			CreatedAt:          time.Now(),
		}
		if err := e.CreateCase(ctx, cs); err != nil {
			return imported, fmt.Errorf("failed to import case %d of %d: %w", len(imported)+1, len(parsed), err)
		}
		metrics.DocumentsIngested.WithLabelValues(cs.SystemType).Inc()
		imported = append(imported, cs)
	}

	logger.Info("Structured document imported", zap.Int("cases", len(imported)))
	return imported, nil
}

// Stats composes the learning loop view with corpus totals.
func (e *Engine) Stats(ctx context.Context) (models.LearningStats, error) {
	stats := e.loop.Stats()

	totalCases, err := e.store.CountCases(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count cases: %w", err)
	}
	totalFeedback, err := e.store.CountFeedback(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count feedback: %w", err)
	}

	stats.TotalCases = totalCases
	stats.TotalFeedback = totalFeedback
	return stats, nil
}

// RetrainNow forces a synchronous retrain, for the manual admin
// endpoint and the scheduled sweep.
func (e *Engine) RetrainNow(ctx context.Context) error {
	err := e.loop.Retrain(ctx)
	if err == nil {
		e.invalidateCache(ctx)
	}
	return err
}

func (e *Engine) invalidateCache(ctx context.Context) {
	if e.cache != nil {
		e.cache.Flush(ctx)
	}
}

func (e *Engine) logSuggestion(ctx context.Context, text, system string, confidence float64, results int, latency time.Duration) {
	rec := &models.SuggestionRecord{
		ID:              uuid.NewString(),
		ProblemText:     text,
		PredictedSystem: system,
		Confidence:      confidence,
		ResultCount:     results,
		LatencyMS:       int(latency.Milliseconds()),
		CreatedAt:       time.Now(),
	}
	if err := e.store.InsertSuggestionRecord(ctx, rec); err != nil {
		logger.Warn("Failed to log suggestion", zap.Error(err))
	}
}
