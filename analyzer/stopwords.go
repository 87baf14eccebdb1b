package analyzer

import "strings"

// defaultStopWords are common English words excluded from frequency
// analysis, plus a few words that carry no signal in paper titles.
var defaultStopWords = []string{
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "i", "it", "for",
	"not", "on", "with", "he", "as", "you", "do", "at", "this", "but", "his", "by",
	"from", "they", "we", "say", "her", "she", "or", "an", "will", "my", "one", "all",
	"would", "there", "their", "what", "so", "up", "out", "if", "about", "who", "get",
	"which", "go", "me", "when", "make", "can", "like", "time", "no", "just", "him",
	"know", "take", "people", "into", "year", "your", "good", "some", "could", "them",
	"see", "other", "than", "then", "now", "look", "only", "come", "its", "over", "think",
	"also", "back", "after", "use", "two", "how", "our", "work", "first", "well", "way",
	"even", "new", "want", "because", "any", "these", "give", "day", "most", "us", "is",
	"was", "are", "been", "has", "had", "were", "said", "did", "having", "may", "should",
	"am", "being", "does", "done", "using", "based", "through",
}

// StopWords is a lowercase word set
type StopWords struct {
	words map[string]struct{}
}

// NewStopWords builds a set from the given words
func NewStopWords(words ...string) *StopWords {
	s := &StopWords{words: make(map[string]struct{}, len(words))}
	s.Add(words...)
	return s
}

// DefaultStopWords returns a fresh copy of the built-in list
func DefaultStopWords() *StopWords {
	return NewStopWords(defaultStopWords...)
}

// Add inserts words, lowercased
func (s *StopWords) Add(words ...string) {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s.words[w] = struct{}{}
		}
	}
}

// Contains reports whether word is a stop word. word must be lowercase.
func (s *StopWords) Contains(word string) bool {
	_, ok := s.words[word]
	return ok
}

// Len returns the number of stop words
func (s *StopWords) Len() int {
	return len(s.words)
}
