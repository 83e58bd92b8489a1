package extract

import (
	"regexp"
	"strings"

	"github.com/kb-advisor/backend/internal/storage/models"
)

// stepMarkers peel the enumeration prefix off a solution line. Checked
// in order; the submatch is the step body.
var stepMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^\d+[.)]\s*(.+)$`),
	regexp.MustCompile(`(?i)^(?:step|passo)\s*\d+\s*[:.]\s*(.+)$`),
	regexp.MustCompile(`^[-•*]\s*(.+)$`),
	regexp.MustCompile(`(?i)^(?:primeiro|depois|em seguida|ent[ãa]o|por fim|first|then|next|finally)[,:]\s*(.+)$`),
}

// stepCategories tags a step by its leading verb or phrase. First
// match wins; order is fixed and test-covered. Unmatched steps are
// "general".
var stepCategories = []struct {
	category string
	keywords []string
}{
	{"login", []string{"acessar", "login", "entrar", "log in"}},
	{"navigation", []string{"navegar", "ir em", "ir para", "abrir"}},
	{"search", []string{"localizar", "encontrar", "procurar", "selecionar"}},
	{"reset", []string{"resetar", "redefinir", "alterar", "gerar senha"}},
	{"verification", []string{"verificar", "validar", "checar", "analisar"}},
	{"test", []string{"testar", "teste"}},
	{"communication", []string{"orientar", "instruir", "comunicar", "enviar"}},
	{"documentation", []string{"documentar", "registrar"}},
	{"data-entry", []string{"copiar", "exportar", "cadastrar", "preencher"}},
	{"configuration", []string{"aplicar", "configurar", "parametrizar"}},
	{"monitoring", []string{"monitorar", "acompanhar", "revisar"}},
	{"restart", []string{"reiniciar", "restart"}},
}

const generalStepCategory = "general"

// FormatSolutionSteps segments a solution string into ordered display
// steps. Lines without an enumeration marker continue the previous
// step. This is a pure text transform with no learning component.
func FormatSolutionSteps(solution string) []models.SolutionStep {
	if strings.TrimSpace(solution) == "" {
		return nil
	}

	var steps []models.SolutionStep
	for _, line := range strings.Split(solution, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		body, marked := stripStepMarker(line)
		if !marked && len(steps) > 0 {
			steps[len(steps)-1].Description += " " + line
			continue
		}
		if !marked {
			body = line
		}
		steps = append(steps, models.SolutionStep{
			Number:      len(steps) + 1,
			Description: body,
			Category:    stepCategory(body),
		})
	}
	return steps
}

// StepCount reports how many display steps a solution segments into.
func StepCount(solution string) int {
	return len(FormatSolutionSteps(solution))
}

func stripStepMarker(line string) (string, bool) {
	for _, marker := range stepMarkers {
		if m := marker.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

func stepCategory(body string) string {
	lower := strings.ToLower(body)
	for _, sc := range stepCategories {
		for _, kw := range sc.keywords {
			if strings.Contains(lower, kw) {
				return sc.category
			}
		}
	}
	return generalStepCategory
}
