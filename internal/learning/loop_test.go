package learning

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-advisor/backend/internal/storage/models"
)

type memSource struct {
	cases []models.Case
}

func (m *memSource) ListCases(ctx context.Context) ([]models.Case, error) {
	return m.cases, nil
}

func trainingCases(n int) []models.Case {
	texts := []struct{ problem, system string }{
		{"senha expirada no tasy prontuario", "Tasy"},
		{"erro no prontuario do tasy atendimento", "Tasy"},
		{"tasy travado na tela do paciente", "Tasy"},
		{"cadastro de beneficiario no sgu com erro", "SGU"},
		{"sgu nao gera relatorio de beneficiario", "SGU"},
		{"parametrizacao do sgu com falha no cadastro", "SGU"},
		{"guia presa no autorizador de procedimento", "Autorizador"},
		{"autorizador rejeita guia de exame", "Autorizador"},
	}
	cases := make([]models.Case, 0, n)
	for i := 0; i < n; i++ {
		tt := texts[i%len(texts)]
		cases = append(cases, models.Case{
			ID:                 int64(i + 1),
			ProblemDescription: tt.problem,
			Solution:           "1. Verificar cadastro\n2. Aplicar correção",
			SystemType:         tt.system,
			CreatedAt:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		})
	}
	return cases
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		MinTrainingCases:    5,
		RetrainThreshold:    5,
		DisagreementPenalty: 0.5,
		SnapshotPath:        filepath.Join(t.TempDir(), "snapshot.json"),
	}
}

func TestLoopStartsCold(t *testing.T) {
	loop := NewLoop(testConfig(t), &memSource{})

	snap := loop.Current()
	require.NotNil(t, snap)
	assert.False(t, snap.Trained())
	assert.Equal(t, 0, snap.Version)
}

func TestRetrainInsufficientDataKeepsOldSnapshot(t *testing.T) {
	source := &memSource{cases: trainingCases(3)}
	loop := NewLoop(testConfig(t), source)

	err := loop.Retrain(context.Background())

	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, loop.Current().Trained())
}

func TestRetrainBuildsUsableSnapshot(t *testing.T) {
	cfg := testConfig(t)
	source := &memSource{cases: trainingCases(8)}
	loop := NewLoop(cfg, source)

	require.NoError(t, loop.Retrain(context.Background()))

	snap := loop.Current()
	assert.True(t, snap.Trained())
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, 8, snap.CaseCount)
	assert.True(t, snap.Classifier.IsTrained())
	assert.NotEmpty(t, snap.Index.Query("prontuario tasy", 3))

	_, err := os.Stat(cfg.SnapshotPath)
	assert.NoError(t, err)
}

func TestRetrainIncrementsVersion(t *testing.T) {
	source := &memSource{cases: trainingCases(8)}
	loop := NewLoop(testConfig(t), source)

	require.NoError(t, loop.Retrain(context.Background()))
	source.cases = trainingCases(10)
	require.NoError(t, loop.Retrain(context.Background()))

	snap := loop.Current()
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, 10, snap.CaseCount)
}

func TestSnapshotRoundTripPredictsIdentically(t *testing.T) {
	cfg := testConfig(t)
	source := &memSource{cases: trainingCases(8)}
	loop := NewLoop(cfg, source)
	require.NoError(t, loop.Retrain(context.Background()))
	fitted := loop.Current()

	restored := NewLoop(cfg, source).Current()
	require.True(t, restored.Trained())
	assert.Equal(t, fitted.Version, restored.Version)
	assert.Equal(t, fitted.CaseCount, restored.CaseCount)

	queries := []string{
		"prontuario travado no tasy",
		"relatorio de beneficiario no sgu",
		"guia rejeitada no autorizador",
	}
	for _, q := range queries {
		wantLabel, wantConf := fitted.Classifier.Predict(q)
		gotLabel, gotConf := restored.Classifier.Predict(q)
		assert.Equal(t, wantLabel, gotLabel, "query: %s", q)
		assert.InDelta(t, wantConf, gotConf, 1e-9, "query: %s", q)

		wantMatches := fitted.Index.Query(q, 3)
		gotMatches := restored.Index.Query(q, 3)
		require.Len(t, gotMatches, len(wantMatches), "query: %s", q)
		for i := range wantMatches {
			assert.Equal(t, wantMatches[i].CaseID, gotMatches[i].CaseID, "query: %s", q)
			assert.InDelta(t, wantMatches[i].Score, gotMatches[i].Score, 1e-9, "query: %s", q)
		}
	}
}

func TestNoteFeedbackThreshold(t *testing.T) {
	loop := NewLoop(testConfig(t), &memSource{cases: trainingCases(8)})

	for i := 0; i < 4; i++ {
		assert.False(t, loop.NoteFeedback())
	}
	assert.True(t, loop.NoteFeedback())

	// A completed retraining pass resets the counter.
	require.NoError(t, loop.Retrain(context.Background()))
	assert.False(t, loop.NoteFeedback())
}

func TestNoteCaseAddedTriggersOnlyOnFirstCrossing(t *testing.T) {
	loop := NewLoop(testConfig(t), &memSource{cases: trainingCases(8)})

	assert.False(t, loop.NoteCaseAdded(4))
	assert.True(t, loop.NoteCaseAdded(5))

	require.NoError(t, loop.Retrain(context.Background()))
	assert.False(t, loop.NoteCaseAdded(9))
}

// gatedSource holds a training pass in flight: ListCases signals entry
// and then blocks until the test releases it.
type gatedSource struct {
	cases   []models.Case
	enter   chan struct{}
	release chan struct{}
}

func newGatedSource(cases []models.Case) *gatedSource {
	return &gatedSource{
		cases:   cases,
		enter:   make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedSource) ListCases(ctx context.Context) ([]models.Case, error) {
	g.enter <- struct{}{}
	<-g.release
	return g.cases, nil
}

func TestRetrainTriggerMidRetrainCoalesces(t *testing.T) {
	source := newGatedSource(trainingCases(8))
	loop := NewLoop(testConfig(t), source)

	done := make(chan error, 1)
	go func() { done <- loop.Retrain(context.Background()) }()
	<-source.enter

	// A trigger arriving while a pass is in flight must schedule
	// exactly one follow-up pass, never get lost.
	require.NoError(t, loop.Retrain(context.Background()))

	source.release <- struct{}{}

	// The holder picks the pending trigger up on its way out.
	<-source.enter
	source.release <- struct{}{}

	require.NoError(t, <-done)
	assert.Equal(t, 2, loop.Stats().RetrainCount)
	assert.Equal(t, 2, loop.Current().Version)
	assert.False(t, loop.pending.Load())
}

func TestCurrentDuringRetrainSeesWholeSnapshot(t *testing.T) {
	first := trainingCases(6)
	second := trainingCases(8)

	source := newGatedSource(first)
	loop := NewLoop(testConfig(t), source)

	done := make(chan error, 1)
	go func() { done <- loop.Retrain(context.Background()) }()
	<-source.enter
	source.release <- struct{}{}
	require.NoError(t, <-done)
	require.Equal(t, 1, loop.Current().Version)

	source.cases = second

	var violations atomic.Int32
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Every observed snapshot must be internally consistent
			// with either the old or the new training pass.
			snap := loop.Current()
			switch snap.Version {
			case 1:
				if snap.CaseCount != len(first) {
					violations.Add(1)
				}
			case 2:
				if snap.CaseCount != len(second) {
					violations.Add(1)
				}
			default:
				violations.Add(1)
			}
			if !snap.Trained() || snap.Classifier == nil {
				violations.Add(1)
			}
		}
	}()

	go func() { done <- loop.Retrain(context.Background()) }()
	<-source.enter
	source.release <- struct{}{}
	require.NoError(t, <-done)

	close(stop)
	wg.Wait()
	assert.Zero(t, violations.Load())
	assert.Equal(t, 2, loop.Current().Version)
	assert.Equal(t, 8, loop.Current().CaseCount)
}

func TestStatsReflectTraining(t *testing.T) {
	loop := NewLoop(testConfig(t), &memSource{cases: trainingCases(8)})

	stats := loop.Stats()
	assert.False(t, stats.Trained)
	assert.Nil(t, stats.LastRetrainAt)

	require.NoError(t, loop.Retrain(context.Background()))

	stats = loop.Stats()
	assert.True(t, stats.Trained)
	assert.Equal(t, 1, stats.RetrainCount)
	assert.Equal(t, 0, stats.FeedbackSince)
	require.NotNil(t, stats.LastRetrainAt)
	assert.NotEmpty(t, stats.PerSystemAccuracy)
}
