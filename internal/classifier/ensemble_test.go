package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-advisor/backend/internal/storage/models"
)

func labeledCase(id int64, problem, system string) models.Case {
	return models.Case{ID: id, ProblemDescription: problem, SystemType: system}
}

func trainingCorpus() []models.Case {
	return []models.Case{
		labeledCase(1, "senha expirada no tasy prontuario do paciente", "Tasy"),
		labeledCase(2, "erro ao abrir prontuario no tasy atendimento travado", "Tasy"),
		labeledCase(3, "tasy nao carrega tela de paciente no atendimento", "Tasy"),
		labeledCase(4, "prontuario eletronico tasy lento para o medico", "Tasy"),
		labeledCase(5, "medico sem acesso ao prontuario no tasy", "Tasy"),
		labeledCase(6, "cadastro de beneficiario no sgu com erro", "SGU"),
		labeledCase(7, "sgu nao gera relatorio de beneficiario", "SGU"),
		labeledCase(8, "erro de parametrizacao no sgu cadastro", "SGU"),
		labeledCase(9, "beneficiario duplicado no sgu relatorio errado", "SGU"),
		labeledCase(10, "sgu com falha na parametrizacao de beneficiario", "SGU"),
	}
}

func TestFitRequiresMinimumLabeledCases(t *testing.T) {
	s := Fit(trainingCorpus()[:3], 5, 0.5)

	assert.False(t, s.IsTrained())

	label, conf := s.Predict("senha expirada no tasy")
	assert.Equal(t, models.SystemUnknown, label)
	assert.Equal(t, 0.0, conf)
}

func TestFitRequiresTwoDistinctLabels(t *testing.T) {
	s := Fit(trainingCorpus()[:5], 5, 0.5)

	assert.False(t, s.IsTrained())
}

func TestFitIgnoresUnknownLabels(t *testing.T) {
	cases := trainingCorpus()[:4]
	cases = append(cases,
		labeledCase(11, "problema qualquer", models.SystemUnknown),
		labeledCase(12, "outro problema", ""),
	)

	// Only one distinct known label remains, so the ensemble must not fit.
	s := Fit(cases, 5, 0.5)
	assert.False(t, s.IsTrained())
}

func TestPredictSeparatesSystems(t *testing.T) {
	s := Fit(trainingCorpus(), 5, 0.5)
	require.True(t, s.IsTrained())

	label, conf := s.Predict("medico reclama do prontuario travado no tasy")
	assert.Equal(t, "Tasy", label)
	assert.Greater(t, conf, 0.5)

	label, conf = s.Predict("parametrizacao de beneficiario no sgu")
	assert.Equal(t, "SGU", label)
	assert.Greater(t, conf, 0.5)
}

func TestPredictIsDeterministic(t *testing.T) {
	s1 := Fit(trainingCorpus(), 5, 0.5)
	s2 := Fit(trainingCorpus(), 5, 0.5)

	text := "erro no prontuario do tasy"
	l1, c1 := s1.Predict(text)
	l2, c2 := s2.Predict(text)

	assert.Equal(t, l1, l2)
	assert.InDelta(t, c1, c2, 1e-9)
}

func TestTrainAccuracyRecorded(t *testing.T) {
	s := Fit(trainingCorpus(), 5, 0.5)

	require.Contains(t, s.TrainAccuracy, "Tasy")
	require.Contains(t, s.TrainAccuracy, "SGU")
	assert.GreaterOrEqual(t, s.TrainAccuracy["Tasy"], 0.0)
	assert.LessOrEqual(t, s.TrainAccuracy["Tasy"], 1.0)
}

func TestNilStatePredictsUnknown(t *testing.T) {
	var s *State

	label, conf := s.Predict("qualquer coisa")
	assert.Equal(t, models.SystemUnknown, label)
	assert.Equal(t, 0.0, conf)
}

func TestKeywordSystem(t *testing.T) {
	label, hits := KeywordSystem("problema com sgu card e carteirinha do beneficiario")
	assert.Equal(t, "SGU Card", label)
	assert.GreaterOrEqual(t, hits, 2)

	label, hits = KeywordSystem("tela do sgu muito lenta")
	assert.Equal(t, "SGU", label)
	assert.Equal(t, 1, hits)

	label, hits = KeywordSystem("prontuario do paciente no tasy")
	assert.Equal(t, "Tasy", label)
	assert.Greater(t, hits, 0)

	_, hits = KeywordSystem("nada relevante aqui")
	assert.Equal(t, 0, hits)
}

func TestKeywordSystemTieIsDeterministic(t *testing.T) {
	// "tasy" and "rede" tie on hit count and keyword length; the
	// winner must be the same label on every call, not map order.
	want, wantHits := KeywordSystem("tasy rede")
	assert.Equal(t, "Network", want)
	assert.Equal(t, 1, wantHits)

	for i := 0; i < 50; i++ {
		label, hits := KeywordSystem("tasy rede")
		assert.Equal(t, want, label)
		assert.Equal(t, wantHits, hits)
	}
}

func TestCatalogSystems(t *testing.T) {
	systems := CatalogSystems()

	assert.Contains(t, systems, "Tasy")
	assert.Contains(t, systems, "SGU Card")
	assert.Len(t, systems, 9)
}
