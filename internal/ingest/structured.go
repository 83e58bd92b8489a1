package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCasesFound reports an import payload that yielded nothing usable.
var ErrNoCasesFound = errors.New("no cases found in document")

// StructuredCase is one parsed entry of a bulk import document. An
// empty System is filled with the catalog default downstream.
type StructuredCase struct {
	System   string
	Problem  string
	Solution string
}

const minFieldLength = 10

// ParseStructuredText splits a sectioned plain-text document into
// cases. Sections are separated by "---" lines or blank-line runs and
// carry Problema:/Solução:/Sistema: headers (English variants accepted).
// Unlabeled lines continue the section that was last opened.
func ParseStructuredText(content string) []StructuredCase {
	var sections []string
	switch {
	case strings.Contains(content, "---"):
		sections = strings.Split(content, "---")
	case strings.Contains(content, "\n\n\n"):
		sections = strings.Split(content, "\n\n\n")
	default:
		sections = strings.Split(content, "\n\n")
	}

	var cases []StructuredCase
	for _, section := range sections {
		if sc, ok := parseSection(section); ok {
			cases = append(cases, sc)
		}
	}
	return cases
}

func parseSection(section string) (StructuredCase, bool) {
	var lines []string
	for _, line := range strings.Split(section, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return StructuredCase{}, false
	}

	var sc StructuredCase
	var problem, solution []string
	current := &problem

	for _, line := range lines {
		lower := strings.ToLower(line)
		switch {
		case hasHeader(lower, "sistema:", "system:"):
			sc.System = headerValue(line)
		case hasHeader(lower, "problema:", "problem:", "issue:"):
			current = &problem
			if v := headerValue(line); v != "" {
				*current = append(*current, v)
			}
		case hasHeader(lower, "solução:", "solucao:", "solution:", "fix:"):
			current = &solution
			if v := headerValue(line); v != "" {
				*current = append(*current, v)
			}
		default:
			*current = append(*current, line)
		}
	}

	sc.Problem = strings.Join(problem, " ")
	sc.Solution = strings.Join(solution, " ")
	if sc.Problem == "" || sc.Solution == "" {
		return StructuredCase{}, false
	}
	return sc, true
}

func hasHeader(lower string, headers ...string) bool {
	for _, h := range headers {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

func headerValue(line string) string {
	if _, after, ok := strings.Cut(line, ":"); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// ParseStructuredCSV reads a CSV export with a header row. Column names
// are matched case-insensitively against the usual Portuguese and
// English labels, so "Sistema,Problema,Solução" and
// "system,problem,solution" both work. Rows with a problem or solution
// shorter than a sentence fragment are dropped.
func ParseStructuredCSV(content string) ([]StructuredCase, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	systemCol, problemCol, solutionCol := -1, -1, -1
	for i, name := range records[0] {
		lower := strings.ToLower(strings.TrimSpace(name))
		switch {
		case containsAny(lower, "sistema", "system", "tipo"):
			systemCol = i
		case containsAny(lower, "problema", "problem", "issue", "erro", "error"):
			problemCol = i
		case containsAny(lower, "solução", "solucao", "solution", "resolução", "resolucao", "fix"):
			solutionCol = i
		}
	}
	if problemCol < 0 || solutionCol < 0 {
		return nil, fmt.Errorf("csv is missing problem and solution columns")
	}

	var cases []StructuredCase
	for _, row := range records[1:] {
		if len(row) <= problemCol || len(row) <= solutionCol {
			continue
		}
		sc := StructuredCase{
			Problem:  strings.TrimSpace(row[problemCol]),
			Solution: strings.TrimSpace(row[solutionCol]),
		}
		if systemCol >= 0 && len(row) > systemCol {
			sc.System = strings.TrimSpace(row[systemCol])
		}
		if len(sc.Problem) <= minFieldLength || len(sc.Solution) <= minFieldLength {
			continue
		}
		cases = append(cases, sc)
	}
	return cases, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
