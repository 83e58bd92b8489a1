// Package extract derives structured case fields from unstructured
// service-order text using priority-ordered regular-expression rules,
// and formats solution text into display steps.
//
// Rule order is part of the contract: rules are tried most-specific
// first and the first match wins per category, so a generic pattern
// ("acesso") can never pre-empt a specific one ("parametrizar usuário
// com as mesmas permissões de X").
package extract

import (
	"regexp"
	"strings"

	"github.com/kb-advisor/backend/internal/storage/models"
)

// ProblemCategory is the closed set of known problem types. Anything
// the rules cannot place falls back to CategoryGeneral.
type ProblemCategory string

const (
	CategoryPermissionCopy ProblemCategory = "parametrizacao"
	CategoryPasswordReset  ProblemCategory = "senha"
	CategoryEmail          ProblemCategory = "email"
	CategoryOutage         ProblemCategory = "sistema_indisponivel"
	CategorySlowness       ProblemCategory = "lentidao"
	CategoryAccess         ProblemCategory = "acesso"
	CategoryGeneral        ProblemCategory = "geral"
)

type systemRule struct {
	label   string
	pattern *regexp.Regexp
}

type categoryRule struct {
	category ProblemCategory
	pattern  *regexp.Regexp
}

// systemRules identify the affected system. "SGU Card" precedes "SGU":
// the broader SGU pattern would otherwise swallow every Card mention.
var systemRules = []systemRule{
	{"SGU Card", regexp.MustCompile(`(?i)SGU\s?Card`)},
	{"Tasy", regexp.MustCompile(`(?i)Tasy`)},
	{"Autorizador", regexp.MustCompile(`(?i)Autorizador`)},
	{"SGU", regexp.MustCompile(`(?i)SGU(?:-|\s)?(?:CRM|2\.0|Suite)?`)},
}

// categoryRules classify the problem type, descending specificity.
// The permission-copy rule must come before the generic access rule.
var categoryRules = []categoryRule{
	{CategoryPermissionCopy, regexp.MustCompile(`(?i)parametrizar.{0,40}permiss|mesmas?\s+permiss(?:ões|oes)\s+(?:de|do|da)|copiar\s+(?:o\s+)?perfil`)},
	{CategoryPasswordReset, regexp.MustCompile(`(?i)senha|password|redefinir|redefini[çc][ãa]o|esqueci|provis[óo]ria|incorreta`)},
	{CategoryEmail, regexp.MustCompile(`(?i)e-?mail|corporativo|correio|pandion`)},
	{CategoryOutage, regexp.MustCompile(`(?i)indispon[íi]vel|fora\s+do\s+ar|n[ãa]o\s+funciona|erro\s+de\s+sistema`)},
	{CategorySlowness, regexp.MustCompile(`(?i)lent(?:o|id[ãa]o)|demora|performance|travando`)},
	{CategoryAccess, regexp.MustCompile(`(?i)acesso|permiss[ãa]o|libera[çc][ãa]o|login|usu[áa]rio|cadastral`)},
}

var (
	// Service orders carry the problem in a "Dano" or "Descrição"
	// section; the lookahead stops at the next section header.
	descriptionRules = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Dano\s+(.+?)(?:\n\s*Execu[çc][ãa]o|\n\s*Situa[çc][ãa]o|\n\s*Hist[óo]ricos|$)`),
		regexp.MustCompile(`(?is)Descri[çc][ãa]o\s+(.+?)(?:\n\s*Dano|\n\s*Execu[çc][ãa]o|\n\s*Situa[çc][ãa]o|$)`),
	}

	referenceUserPattern = regexp.MustCompile(`(?i)permiss(?:ões|oes)\s+(?:de|da|do)\s+([a-zá-ú]+\.[a-zá-ú]+|[a-zá-ú]{3,})`)
	targetUserPattern    = regexp.MustCompile(`(?i)usu[áa]ri[oa]\s+([a-zá-ú]+\.[a-zá-ú]+)`)

	headerLinePattern = regexp.MustCompile(`(?i)^(N[úu]mero|Solicitante|Tel|Localiza[çc][ãa]o|Equipamento)`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

const maxDescriptionLen = 500

// Extractor applies the rule catalogs to raw extracted document text
// and assembles a draft case. All state is read-only after
// construction; safe for concurrent use.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractCase derives a draft case from raw text. A miss on any
// category degrades to "Unknown"/empty instead of failing the whole
// ingestion.
func (e *Extractor) ExtractCase(rawText string) models.DraftCase {
	system := e.IdentifySystem(rawText)
	description := e.extractDescription(rawText)
	category := e.ClassifyProblem(description)
	if category == CategoryGeneral {
		// The description section may omit terms present elsewhere in
		// the document.
		category = e.ClassifyProblem(rawText)
	}
	entities := e.extractEntities(rawText)

	return models.DraftCase{
		ProblemDescription: description,
		Solution:           SolutionFor(category, system, entities),
		SystemType:         system,
		ProblemCategory:    string(category),
		Entities:           entities,
	}
}

// IdentifySystem returns the first system rule that matches, or
// "Unknown" when none does.
func (e *Extractor) IdentifySystem(text string) string {
	for _, rule := range systemRules {
		if rule.pattern.MatchString(text) {
			return rule.label
		}
	}
	return models.SystemUnknown
}

// ClassifyProblem returns the first category rule that matches, in
// descending specificity, or CategoryGeneral when none does.
func (e *Extractor) ClassifyProblem(text string) ProblemCategory {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	return CategoryGeneral
}

func (e *Extractor) extractDescription(text string) string {
	for _, rule := range descriptionRules {
		if m := rule.FindStringSubmatch(text); m != nil {
			desc := whitespacePattern.ReplaceAllString(strings.TrimSpace(m[1]), " ")
			if desc != "" {
				return truncate(desc, maxDescriptionLen)
			}
		}
	}

	// No labeled section: take body lines past the header block.
	var b strings.Builder
	lines := strings.Split(text, "\n")
	start := 0
	if len(lines) > 10 {
		start = 10
	}
	for _, line := range lines[start:] {
		line = strings.TrimSpace(line)
		if line == "" || headerLinePattern.MatchString(line) {
			continue
		}
		b.WriteString(line)
		b.WriteString(" ")
		if b.Len() > maxDescriptionLen {
			break
		}
	}
	desc := strings.TrimSpace(b.String())
	if desc == "" {
		return "Problema não identificado no documento"
	}
	return truncate(desc, maxDescriptionLen)
}

func (e *Extractor) extractEntities(text string) map[string]string {
	entities := make(map[string]string)
	if m := referenceUserPattern.FindStringSubmatch(text); m != nil {
		entities["reference_user"] = strings.ToLower(m[1])
	}
	if m := targetUserPattern.FindStringSubmatch(text); m != nil {
		target := strings.ToLower(m[1])
		if target != entities["reference_user"] {
			entities["target_user"] = target
		}
	}
	return entities
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
