package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructuredTextDashSeparated(t *testing.T) {
	content := `Sistema: Tasy
Problema: Senha expirada no sistema
Solução: Resetar a senha pelo portal
---
Sistema: SGU
Problema: Usuário sem acesso ao módulo de faturamento
Solução: Parametrizar o perfil do usuário`

	cases := ParseStructuredText(content)

	require.Len(t, cases, 2)
	assert.Equal(t, "Tasy", cases[0].System)
	assert.Equal(t, "Senha expirada no sistema", cases[0].Problem)
	assert.Equal(t, "Resetar a senha pelo portal", cases[0].Solution)
	assert.Equal(t, "SGU", cases[1].System)
}

func TestParseStructuredTextBlankLineSeparated(t *testing.T) {
	content := "Problema: lentidão no Autorizador\nSolução: reiniciar o serviço\n\nProblema: erro de login\nSolução: limpar o cache do navegador"

	cases := ParseStructuredText(content)

	require.Len(t, cases, 2)
	assert.Empty(t, cases[0].System)
	assert.Equal(t, "lentidão no Autorizador", cases[0].Problem)
}

func TestParseStructuredTextContinuationLines(t *testing.T) {
	content := `Problema: usuário não consegue acessar
o módulo de agendamento
Solução: verificar o perfil
e liberar a permissão`

	cases := ParseStructuredText(content)

	require.Len(t, cases, 1)
	assert.Equal(t, "usuário não consegue acessar o módulo de agendamento", cases[0].Problem)
	assert.Equal(t, "verificar o perfil e liberar a permissão", cases[0].Solution)
}

func TestParseStructuredTextEnglishHeaders(t *testing.T) {
	content := "System: Tasy\nProblem: password expired\nSolution: reset via portal"

	cases := ParseStructuredText(content)

	require.Len(t, cases, 1)
	assert.Equal(t, "Tasy", cases[0].System)
	assert.Equal(t, "password expired", cases[0].Problem)
}

func TestParseStructuredTextSkipsIncompleteSections(t *testing.T) {
	content := `Problema: sem solução registrada
Sistema: Tasy
---
apenas uma linha
---
Problema: completo
Solução: resolvido`

	cases := ParseStructuredText(content)

	require.Len(t, cases, 1)
	assert.Equal(t, "completo", cases[0].Problem)
}

func TestParseStructuredCSVPortugueseHeaders(t *testing.T) {
	content := `Sistema,Problema,Solução
Tasy,Senha expirada no sistema,Resetar a senha pelo portal
SGU,Usuário sem acesso ao faturamento,Parametrizar o perfil do usuário`

	cases, err := ParseStructuredCSV(content)

	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "Tasy", cases[0].System)
	assert.Equal(t, "Senha expirada no sistema", cases[0].Problem)
	assert.Equal(t, "Parametrizar o perfil do usuário", cases[1].Solution)
}

func TestParseStructuredCSVEnglishHeadersNoSystem(t *testing.T) {
	content := `problem,solution
password expired in system,reset the password via portal`

	cases, err := ParseStructuredCSV(content)

	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Empty(t, cases[0].System)
}

func TestParseStructuredCSVDropsShortRows(t *testing.T) {
	content := `Problema,Solução
curto,resposta
problema longo o suficiente,solução longa o suficiente`

	cases, err := ParseStructuredCSV(content)

	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "problema longo o suficiente", cases[0].Problem)
}

func TestParseStructuredCSVMissingColumns(t *testing.T) {
	_, err := ParseStructuredCSV("nome,valor\na,b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "problem and solution")
}
