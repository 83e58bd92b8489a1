// Package text provides the shared term tokenization used by both the
// vector index and the classifier ensemble, so a query is projected
// into exactly the space the models were fitted on.
package text

import (
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// stopwords covers the high-frequency English and Portuguese function
// words that carry no signal for case retrieval. Domain terms (system
// names, error codes) are never in this set.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "were", "will", "with", "this", "not", "no",
		"o", "os", "um", "uma", "e", "em", "de", "do", "da", "dos", "das",
		"no", "na", "nos", "nas", "que", "com", "para", "por", "se",
		"ao", "aos", "as", "ou", "mais", "mas", "ja", "foi", "ser",
		"esta", "este", "esse", "essa", "isso", "sua", "seu", "nao",
	} {
		stopwords[w] = struct{}{}
	}
}

// Tokenize lowercases, strips accents and splits text into index
// terms, dropping stopwords and single-character tokens.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var raw []string
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err == nil {
		for _, tok := range doc.Tokens() {
			raw = append(raw, tok.Text)
		}
	} else {
		// Tokenizer failure degrades to whitespace splitting rather
		// than losing the document.
		raw = strings.Fields(text)
	}

	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		t = normalizeTerm(t)
		if len([]rune(t)) < 2 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

// TermCounts returns the term-frequency map for a text.
func TermCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, t := range Tokenize(text) {
		counts[t]++
	}
	return counts
}

// normalizeTerm lowercases, folds common Latin accents and drops any
// leading/trailing punctuation left by the tokenizer.
func normalizeTerm(t string) string {
	t = strings.ToLower(t)
	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if folded, ok := accentFold[r]; ok {
			r = folded
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'ê': 'e', 'è': 'e', 'ë': 'e',
	'í': 'i', 'î': 'i', 'ì': 'i', 'ï': 'i',
	'ó': 'o', 'ô': 'o', 'õ': 'o', 'ò': 'o', 'ö': 'o',
	'ú': 'u', 'û': 'u', 'ù': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}
