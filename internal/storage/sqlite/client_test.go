package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-advisor/backend/internal/storage/models"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleCase() *models.Case {
	return &models.Case{
		ProblemDescription: "senha expirada no tasy",
		Solution:           "1. Resetar senha\n2. Testar acesso",
		SystemType:         "Tasy",
		Tags:               []string{"senha", "urgente"},
		CreatedAt:          time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestInsertAndGetCase(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	cs := sampleCase()
	require.NoError(t, c.InsertCase(ctx, cs))
	require.NotZero(t, cs.ID)

	got, err := c.GetCase(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, cs.ProblemDescription, got.ProblemDescription)
	assert.Equal(t, cs.Solution, got.Solution)
	assert.Equal(t, "Tasy", got.SystemType)
	assert.Equal(t, []string{"senha", "urgente"}, got.Tags)
	assert.True(t, got.CreatedAt.Equal(cs.CreatedAt))
	assert.Nil(t, got.EffectivenessScore)
	assert.Equal(t, 0, got.FeedbackCount)
}

func TestInsertCaseDefaultsSystem(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	cs := &models.Case{ProblemDescription: "problema", Solution: "solução"}
	require.NoError(t, c.InsertCase(ctx, cs))

	got, err := c.GetCase(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SystemUnknown, got.SystemType)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetCaseNotFound(t *testing.T) {
	c := testClient(t)

	_, err := c.GetCase(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCase(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	cs := sampleCase()
	require.NoError(t, c.InsertCase(ctx, cs))

	cs.Solution = "1. Redefinir senha provisória"
	cs.SystemType = "SGU"
	require.NoError(t, c.UpdateCase(ctx, cs))

	got, err := c.GetCase(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, "1. Redefinir senha provisória", got.Solution)
	assert.Equal(t, "SGU", got.SystemType)

	missing := sampleCase()
	missing.ID = 404
	assert.ErrorIs(t, c.UpdateCase(ctx, missing), ErrNotFound)
}

func TestDeleteCase(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	cs := sampleCase()
	require.NoError(t, c.InsertCase(ctx, cs))
	require.NoError(t, c.DeleteCase(ctx, cs.ID))

	_, err := c.GetCase(ctx, cs.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.DeleteCase(ctx, cs.ID), ErrNotFound)
}

func TestListCasesOrderedByID(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cs := sampleCase()
		require.NoError(t, c.InsertCase(ctx, cs))
	}

	cases, err := c.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, int64(1), cases[0].ID)
	assert.Equal(t, int64(3), cases[2].ID)
}

func TestSearchCases(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	a := sampleCase()
	require.NoError(t, c.InsertCase(ctx, a))
	b := &models.Case{
		ProblemDescription: "cadastro de beneficiario com erro",
		Solution:           "corrigir cadastro",
		SystemType:         "SGU",
		CreatedAt:          time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.InsertCase(ctx, b))

	found, err := c.SearchCases(ctx, "senha", "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	found, err = c.SearchCases(ctx, "", "sgu")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	found, err = c.SearchCases(ctx, "cadastro", "Tasy")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = c.SearchCases(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestDashboardStats(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	tasy := sampleCase()
	require.NoError(t, c.InsertCase(ctx, tasy))
	sgu := &models.Case{ProblemDescription: "sem acesso", Solution: "liberar perfil", SystemType: "SGU"}
	require.NoError(t, c.InsertCase(ctx, sgu))
	sgu2 := &models.Case{ProblemDescription: "tela travada", Solution: "reiniciar", SystemType: "SGU"}
	require.NoError(t, c.InsertCase(ctx, sgu2))

	fb := &models.CaseFeedback{CaseID: tasy.ID, Rating: 5}
	require.NoError(t, c.InsertFeedback(ctx, fb, 1.0, 1))
	fb2 := &models.CaseFeedback{CaseID: sgu.ID, Rating: 3}
	require.NoError(t, c.InsertFeedback(ctx, fb2, 0.5, 1))

	stats, err := c.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCases)
	assert.Equal(t, 2, stats.TotalFeedback)
	assert.Equal(t, map[string]int{"Tasy": 1, "SGU": 2}, stats.CasesBySystem)
	assert.Equal(t, 2, stats.CasesWithFeedback)
	assert.InDelta(t, 0.75, stats.AverageEffectiveness, 1e-12)
}

func TestDashboardStatsEmptyCorpus(t *testing.T) {
	c := testClient(t)

	stats, err := c.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalCases)
	assert.Empty(t, stats.CasesBySystem)
	assert.Zero(t, stats.AverageEffectiveness)
}

func TestInsertFeedbackUpdatesAggregateTransactionally(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	cs := sampleCase()
	require.NoError(t, c.InsertCase(ctx, cs))

	fb := &models.CaseFeedback{CaseID: cs.ID, Rating: 5, ResolutionMethod: "suggested"}
	require.NoError(t, c.InsertFeedback(ctx, fb, 1.0, 1))
	require.NotZero(t, fb.ID)

	got, err := c.GetCase(ctx, cs.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EffectivenessScore)
	assert.InDelta(t, 1.0, *got.EffectivenessScore, 1e-12)
	assert.Equal(t, 1, got.FeedbackCount)

	n, err := c.CountFeedback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCounts(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	n, err := c.CountCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, c.InsertCase(ctx, sampleCase()))
	n, err = c.CountCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecentCases(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		cs := sampleCase()
		cs.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, c.InsertCase(ctx, cs))
	}

	recent, err := c.RecentCases(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(4), recent[0].ID)
	assert.Equal(t, int64(3), recent[1].ID)
}

func TestInsertSuggestionRecord(t *testing.T) {
	c := testClient(t)

	rec := &models.SuggestionRecord{
		ID:              "0f1e2d3c",
		ProblemText:     "senha expirada",
		PredictedSystem: "Tasy",
		Confidence:      0.8,
		ResultCount:     3,
		LatencyMS:       12,
		CreatedAt:       time.Now(),
	}
	assert.NoError(t, c.InsertSuggestionRecord(context.Background(), rec))
}
