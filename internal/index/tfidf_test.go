package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-advisor/backend/internal/storage/models"
)

func mkCase(id int64, problem, solution string, createdAt time.Time) models.Case {
	return models.Case{
		ID:                 id,
		ProblemDescription: problem,
		Solution:           solution,
		SystemType:         "Tasy",
		CreatedAt:          createdAt,
	}
}

func corpus() []models.Case {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.Case{
		mkCase(1, "senha expirada no sistema tasy", "resetar senha do usuario", base),
		mkCase(2, "erro de login no autorizador", "verificar credenciais do autorizador", base.Add(time.Hour)),
		mkCase(3, "lentidao na tela de prontuario", "reiniciar servidor de aplicacao", base.Add(2*time.Hour)),
		mkCase(4, "impressora nao imprime etiquetas", "reinstalar driver da impressora", base.Add(3*time.Hour)),
		mkCase(5, "email corporativo incorreto no cadastro", "atualizar email no cadastro", base.Add(4*time.Hour)),
	}
}

func TestFitBelowMinimumStaysEmpty(t *testing.T) {
	cases := corpus()[:3]

	s := Fit(cases, 5)

	assert.True(t, s.Empty())
	assert.Nil(t, s.Query("senha expirada", 5))
}

func TestQueryFindsVerbatimCaseFirst(t *testing.T) {
	s := Fit(corpus(), 5)
	require.False(t, s.Empty())

	matches := s.Query("senha expirada no sistema tasy resetar senha do usuario", 5)

	require.NotEmpty(t, matches)
	assert.Equal(t, int64(1), matches[0].CaseID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestQueryOutOfVocabularyReturnsNothing(t *testing.T) {
	s := Fit(corpus(), 5)

	assert.Nil(t, s.Query("xyzzy quux frobnicate", 5))
	assert.Nil(t, s.Query("", 5))
}

func TestQueryLimitsToK(t *testing.T) {
	s := Fit(corpus(), 5)

	matches := s.Query("senha login email impressora prontuario", 2)

	assert.LessOrEqual(t, len(matches), 2)
}

func TestQueryTieBreaksByRecencyThenID(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []models.Case{
		mkCase(1, "senha expirada", "", base),
		mkCase(2, "senha expirada", "", base.Add(time.Hour)),
		mkCase(3, "senha expirada", "", base.Add(time.Hour)),
	}

	s := Fit(cases, 3)
	matches := s.Query("senha", 3)

	require.Len(t, matches, 3)
	// Identical scores: the two newer cases come first, lower ID
	// breaking the remaining tie.
	assert.Equal(t, int64(2), matches[0].CaseID)
	assert.Equal(t, int64(3), matches[1].CaseID)
	assert.Equal(t, int64(1), matches[2].CaseID)
}

func TestSimilarityProperties(t *testing.T) {
	a := "usuario sem acesso ao sistema"
	b := "acesso negado para usuario"

	assert.InDelta(t, 1.0, Similarity(a, a), 1e-9)
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-12)
	assert.Equal(t, 0.0, Similarity(a, "impressora quebrada"))
	assert.Equal(t, 0.0, Similarity(a, ""))
}
