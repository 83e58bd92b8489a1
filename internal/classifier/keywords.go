package classifier

import (
	"sort"
	"strings"
)

// systemKeywords is the fixed catalog of known target systems and the
// terms that identify them in a problem description. Keyword hits act
// as a prior: they resolve the label before the trained ensemble is
// consulted, and they are the only signal available during cold start.
var systemKeywords = map[string][]string{
	"Tasy":               {"tasy", "hospitalar", "hospital", "prontuario", "prontuário", "paciente", "atendimento", "medico", "médico"},
	"SGU":                {"sgu", "sistema de gestao", "gestao hospitalar", "modulo sgu"},
	"SGU Card":           {"sgu card", "cartao", "cartão", "credenciamento", "carteirinha"},
	"Autorizador":        {"autorizador", "autorizacao", "autorização", "autorizar", "procedimento", "guia"},
	"Healthcare":         {"saude", "saúde", "health", "emr", "ehr", "clinico", "clínico", "diagnostico", "exame"},
	"Administrative":     {"administrativo", "admin", "rh", "financeiro", "contabil", "contábil"},
	"Network":            {"rede", "network", "router", "switch", "firewall", "dns", "dhcp", "vlan"},
	"Database":           {"banco de dados", "database", "sql", "mysql", "postgres", "oracle", "mongodb"},
	"Application Server": {"servidor", "server", "apache", "nginx", "tomcat", "iis", "aplicacao", "aplicação"},
}

// orderedSystems fixes the catalog iteration order so equal evidence
// always resolves to the same label.
var orderedSystems = func() []string {
	labels := make([]string, 0, len(systemKeywords))
	for label := range systemKeywords {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}()

// KeywordSystem scores each catalog system by keyword hits in the text
// and returns the best one with its hit count. Zero hits means no
// system could be determined this way.
func KeywordSystem(problemText string) (string, int) {
	lower := strings.ToLower(problemText)

	bestLabel, bestHits := "", 0
	// "SGU Card" must win over "SGU" on equal evidence, so longer,
	// more specific keyword sets are checked by hit count and ties go
	// to the label with the longer matched keyword. A full tie goes to
	// the first label in catalog order.
	bestKeywordLen := 0
	for _, label := range orderedSystems {
		hits, longest := 0, 0
		for _, kw := range systemKeywords[label] {
			if strings.Contains(lower, kw) {
				hits++
				if len(kw) > longest {
					longest = len(kw)
				}
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && longest > bestKeywordLen) {
			bestLabel, bestHits, bestKeywordLen = label, hits, longest
		}
	}
	return bestLabel, bestHits
}

// CatalogSystems lists the known system labels in catalog order.
func CatalogSystems() []string {
	return append([]string(nil), orderedSystems...)
}
