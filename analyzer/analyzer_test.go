package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"paper-filter/types"
)

func titles(ts ...string) types.Table {
	records := make([]types.Record, len(ts))
	for i, title := range ts {
		records[i] = types.Record{ID: i, Title: title}
	}
	return types.Table{TitleColumn: "Title", Records: records}
}

func TestDefaultStopWords(t *testing.T) {
	stops := DefaultStopWords()

	assert.True(t, stops.Contains("the"))
	assert.True(t, stops.Contains("using"))
	assert.False(t, stops.Contains("learning"))
	assert.Equal(t, len(defaultStopWords), stops.Len())
}

func TestStopWords_AddLowercases(t *testing.T) {
	stops := NewStopWords("Survey", " ", "")
	stops.Add("REVIEW")

	assert.True(t, stops.Contains("survey"))
	assert.True(t, stops.Contains("review"))
	assert.Equal(t, 2, stops.Len())
}

func TestTokenize(t *testing.T) {
	a := New(Options{})

	tokens := a.Tokenize("Deep-Learning for EEG: a 3D approach (2nd ed.)")

	assert.Equal(t, []string{"deep", "learning", "eeg", "3d", "approach", "2nd", "ed"}, tokens)
}

func TestTokenize_MinLength(t *testing.T) {
	a := New(Options{MinLength: 4})

	assert.Equal(t, []string{"deep", "nets"}, a.Tokenize("Deep nets via EEG"))
}

func TestTokenize_Stemming(t *testing.T) {
	a := New(Options{Stem: true})

	assert.Equal(t, []string{"monitor", "monitor", "devic"}, a.Tokenize("Monitoring monitors devices"))
}

func TestTopTerms_RankedWithFirstSeenTies(t *testing.T) {
	a := New(Options{})
	table := titles(
		"Wearable EEG monitoring",
		"EEG and eye tracking",
		"Eye tracking for Parkinson's",
		"Wearable sensors",
	)

	ranked := a.TopTerms(table, 0)

	assert.Equal(t, []TermCount{
		{Term: "wearable", Count: 2},
		{Term: "eeg", Count: 2},
		{Term: "eye", Count: 2},
		{Term: "tracking", Count: 2},
		{Term: "monitoring", Count: 1},
		{Term: "parkinson", Count: 1},
		{Term: "sensors", Count: 1},
	}, ranked)
}

func TestTopTerms_Limit(t *testing.T) {
	a := New(Options{})
	table := titles("alpha beta gamma", "beta gamma", "gamma")

	assert.Equal(t, []TermCount{{Term: "gamma", Count: 3}, {Term: "beta", Count: 2}}, a.TopTerms(table, 2))
	assert.Len(t, a.TopTerms(table, 10), 3)
}

func TestTopTerms_EmptyTable(t *testing.T) {
	a := New(Options{})

	assert.Empty(t, a.TopTerms(titles(), 5))
}

func TestTopTerms_DoesNotMutateInput(t *testing.T) {
	a := New(Options{Stem: true})
	table := titles("Monitoring Systems", "The Systems")

	a.TopTerms(table, 0)

	assert.Equal(t, []string{"Monitoring Systems", "The Systems"}, table.Titles())
}
