package filter

import (
	"fmt"
	"strings"

	"paper-filter/logger"
)

// MatchMode selects how include keywords combine
type MatchMode string

const (
	MatchAny MatchMode = "any"
	MatchAll MatchMode = "all"
)

// ParseMode accepts "any"/"or" and "all"/"and"; empty means any
func ParseMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "or":
		return MatchAny, nil
	case "all", "and":
		return MatchAll, nil
	}
	return "", logger.InvalidCriteria("unknown match mode %q", s)
}

// Criteria holds one filter application. Nil bounds impose no constraint.
type Criteria struct {
	Include  []string  `json:"include_keywords" yaml:"include_keywords"`
	Mode     MatchMode `json:"mode" yaml:"mode"`
	Exclude  []string  `json:"exclude_keywords" yaml:"exclude_keywords"`
	MinWords *int      `json:"min_words,omitempty" yaml:"min_words,omitempty"`
	MaxWords *int      `json:"max_words,omitempty" yaml:"max_words,omitempty"`
}

// Bound returns a pointer for use as a word-count bound
func Bound(n int) *int {
	return &n
}

// ParseKeywords splits user input on newlines and commas, trimming blanks.
func ParseKeywords(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

// Validate rejects negative bounds, min > max and unknown modes
func (c Criteria) Validate() error {
	if c.Mode != "" && c.Mode != MatchAny && c.Mode != MatchAll {
		return logger.InvalidCriteria("unknown match mode %q", c.Mode)
	}
	if c.MinWords != nil && *c.MinWords < 0 {
		return logger.InvalidCriteria("min words must not be negative, got %d", *c.MinWords)
	}
	if c.MaxWords != nil && *c.MaxWords < 0 {
		return logger.InvalidCriteria("max words must not be negative, got %d", *c.MaxWords)
	}
	if c.MinWords != nil && c.MaxWords != nil && *c.MinWords > *c.MaxWords {
		return logger.InvalidCriteria("min words %d exceeds max words %d", *c.MinWords, *c.MaxWords)
	}
	return nil
}

// IsZero reports whether the criteria constrain nothing
func (c Criteria) IsZero() bool {
	return len(normalizeKeywords(c.Include)) == 0 &&
		len(normalizeKeywords(c.Exclude)) == 0 &&
		c.MinWords == nil && c.MaxWords == nil
}

// String renders the criteria for logs
func (c Criteria) String() string {
	bound := func(b *int) string {
		if b == nil {
			return "-"
		}
		return fmt.Sprint(*b)
	}
	mode := c.Mode
	if mode == "" {
		mode = MatchAny
	}
	return fmt.Sprintf("include=%v mode=%s exclude=%v words=[%s,%s]",
		c.Include, mode, c.Exclude, bound(c.MinWords), bound(c.MaxWords))
}

// normalizeKeywords lowercases, trims and dedupes keywords, keeping order
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
