package analyzer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball"

	"paper-filter/types"
)

// DefaultMinLength is the shortest token counted
const DefaultMinLength = 2

// TermCount is one ranked term
type TermCount struct {
	Term  string `json:"word"`
	Count int    `json:"count"`
}

// Options configures an Analyzer
type Options struct {
	StopWords *StopWords
	MinLength int
	// Stem groups inflected forms under their Snowball English stem.
	Stem bool
}

// Analyzer ranks title terms by frequency
type Analyzer struct {
	stopWords *StopWords
	minLength int
	stem      bool
}

// New creates an analyzer; zero options fall back to the defaults
func New(opts Options) *Analyzer {
	if opts.StopWords == nil {
		opts.StopWords = DefaultStopWords()
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	return &Analyzer{
		stopWords: opts.StopWords,
		minLength: opts.MinLength,
		stem:      opts.Stem,
	}
}

// Tokenize lowercases a title, splits it on anything that is not a letter or
// digit, and drops stop words and short tokens.
func (a *Analyzer) Tokenize(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, token := range fields {
		if utf8.RuneCountInString(token) < a.minLength || a.stopWords.Contains(token) {
			continue
		}
		if a.stem {
			if stemmed, err := snowball.Stem(token, "english", false); err == nil && stemmed != "" {
				token = stemmed
			}
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// TopTerms returns the n most frequent title terms, count descending with
// ties in first-seen order. n <= 0 returns every term.
func (a *Analyzer) TopTerms(table types.Table, n int) []TermCount {
	counts := make(map[string]int)
	var order []string
	for _, record := range table.Records {
		for _, token := range a.Tokenize(record.Title) {
			if counts[token] == 0 {
				order = append(order, token)
			}
			counts[token]++
		}
	}

	ranked := make([]TermCount, len(order))
	for i, term := range order {
		ranked[i] = TermCount{Term: term, Count: counts[term]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
