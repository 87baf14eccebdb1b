package filter

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"paper-filter/types"
)

// Outcome says why a record was kept or dropped
type Outcome int

const (
	Kept Outcome = iota
	DroppedManual
	DroppedInclude
	DroppedExclude
	DroppedLength
)

func (o Outcome) String() string {
	switch o {
	case Kept:
		return "kept"
	case DroppedManual:
		return "manual_exclusion"
	case DroppedInclude:
		return "missing_include_keyword"
	case DroppedExclude:
		return "matched_exclude_keyword"
	case DroppedLength:
		return "title_length"
	}
	return "unknown"
}

// Stats counts removed records by the first predicate that rejected them
type Stats struct {
	OriginalCount   int `json:"original_count"`
	RemainingCount  int `json:"remaining_count"`
	RemovedCount    int `json:"removed_count"`
	ManualExcluded  int `json:"manual_excluded"`
	MissingInclude  int `json:"missing_include"`
	MatchedExclude  int `json:"matched_exclude"`
	OutOfLengthBand int `json:"out_of_length_band"`
}

// Add folds the stats of a later pass over the survivors into s. The
// remaining count becomes that of the later pass.
func (s *Stats) Add(next Stats) {
	s.RemainingCount = next.RemainingCount
	s.RemovedCount += next.RemovedCount
	s.ManualExcluded += next.ManualExcluded
	s.MissingInclude += next.MissingInclude
	s.MatchedExclude += next.MatchedExclude
	s.OutOfLengthBand += next.OutOfLengthBand
}

func (s *Stats) record(o Outcome) {
	switch o {
	case Kept:
		s.RemainingCount++
		return
	case DroppedManual:
		s.ManualExcluded++
	case DroppedInclude:
		s.MissingInclude++
	case DroppedExclude:
		s.MatchedExclude++
	case DroppedLength:
		s.OutOfLengthBand++
	}
	s.RemovedCount++
}

// Predicate is a compiled Criteria. The keyword automata keep per-match
// scratch state, so a Predicate must not be shared between goroutines.
type Predicate struct {
	mode         MatchMode
	include      *ahocorasick.Matcher
	includeCount int
	exclude      *ahocorasick.Matcher
	minWords     *int
	maxWords     *int
}

// Compile validates c and builds the keyword matchers
func Compile(c Criteria) (*Predicate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &Predicate{
		mode:     c.Mode,
		minWords: c.MinWords,
		maxWords: c.MaxWords,
	}
	if p.mode == "" {
		p.mode = MatchAny
	}
	if include := normalizeKeywords(c.Include); len(include) > 0 {
		p.include = ahocorasick.NewStringMatcher(include)
		p.includeCount = len(include)
	}
	if exclude := normalizeKeywords(c.Exclude); len(exclude) > 0 {
		p.exclude = ahocorasick.NewStringMatcher(exclude)
	}
	return p, nil
}

// Evaluate checks one record. Predicates run in the order manual exclusion,
// include, exclude, length; the first failure decides the outcome.
func (p *Predicate) Evaluate(record types.Record, exclusions *Exclusions) Outcome {
	if exclusions.Contains(record.ID) {
		return DroppedManual
	}

	title := []byte(strings.ToLower(record.Title))

	if p.include != nil {
		if p.mode == MatchAll {
			if len(p.include.Match(title)) < p.includeCount {
				return DroppedInclude
			}
		} else if !p.include.Contains(title) {
			return DroppedInclude
		}
	}

	if p.exclude != nil && p.exclude.Contains(title) {
		return DroppedExclude
	}

	if p.minWords != nil || p.maxWords != nil {
		words := record.WordCount()
		if p.minWords != nil && words < *p.minWords {
			return DroppedLength
		}
		if p.maxWords != nil && words > *p.maxWords {
			return DroppedLength
		}
	}

	return Kept
}

// Apply filters table with c and exclusions, returning the surviving
// records in their original order. The input table is never modified.
func Apply(table types.Table, c Criteria, exclusions *Exclusions) (types.Table, Stats, error) {
	p, err := Compile(c)
	if err != nil {
		return types.Table{}, Stats{}, err
	}

	stats := Stats{OriginalCount: table.Len()}
	filtered := table.Subset(func(record types.Record) bool {
		outcome := p.Evaluate(record, exclusions)
		stats.record(outcome)
		return outcome == Kept
	})
	return filtered, stats, nil
}
