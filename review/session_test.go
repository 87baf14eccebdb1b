package review

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-filter/logger"
	"paper-filter/types"
)

func quietLogger() *logger.Logger {
	return logger.NewWithWriter("review-test", &bytes.Buffer{}, logger.LevelError)
}

func snapshot(ids ...int) types.Table {
	records := make([]types.Record, len(ids))
	for i, id := range ids {
		records[i] = types.Record{ID: id, Title: "paper"}
	}
	return types.Table{Columns: []string{"Title"}, TitleColumn: "Title", Records: records}
}

func assertProgressInvariants(t *testing.T, s *Session) {
	t.Helper()
	p := s.Progress()
	assert.Equal(t, p.Kept+p.Rejected, p.Decided)
	assert.GreaterOrEqual(t, p.Cursor, 0)
	assert.LessOrEqual(t, p.Cursor, p.Total)
	assert.LessOrEqual(t, p.Decided, p.Total)
}

func TestSession_DecideThroughToComplete(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	s.Load(snapshot(1, 2, 3))
	require.Equal(t, StateActive, s.State())

	for _, keep := range []bool{true, false, true} {
		_, err := s.Decide(keep)
		require.NoError(t, err)
		assertProgressInvariants(t, s)
	}

	p := s.Progress()
	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, 3, p.Decided)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.Kept)
	assert.Equal(t, 1, p.Rejected)
	assert.Equal(t, 3, p.Cursor)
}

func TestSession_PreviousFromCompleteAndRedecide(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	s.Load(snapshot(1, 2, 3))
	for _, keep := range []bool{true, false, true} {
		_, err := s.Decide(keep)
		require.NoError(t, err)
	}

	require.NoError(t, s.Previous())
	assert.Equal(t, 2, s.Cursor())
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, Keep, s.Decision(3))

	record, err := s.Decide(false)
	require.NoError(t, err)
	assert.Equal(t, 3, record.ID)
	assert.Equal(t, Reject, s.Decision(3))

	p := s.Progress()
	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, 3, p.Decided)
	assert.Equal(t, 1, p.Kept)
	assert.Equal(t, 2, p.Rejected)
}

func TestSession_PreviousFloorsAtZero(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	s.Load(snapshot(1, 2))

	require.NoError(t, s.Previous())
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, StateActive, s.State())
}

func TestSession_EmptyRejectsOperations(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	assert.Equal(t, StateEmpty, s.State())

	_, err := s.Decide(true)
	assert.True(t, logger.IsErrorCode(err, logger.CodeSessionState))
	assert.True(t, logger.IsErrorCode(s.Previous(), logger.CodeSessionState))

	s.Load(snapshot())
	assert.Equal(t, StateEmpty, s.State())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestSession_DecideWhenCompleteFails(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	s.Load(snapshot(1))
	_, err := s.Decide(true)
	require.NoError(t, err)

	_, err = s.Decide(false)
	require.Error(t, err)
	assert.True(t, logger.IsErrorType(err, logger.ErrorTypeSession))
	assert.Equal(t, Keep, s.Decision(1))
	assert.Equal(t, 1, s.Cursor())
}

func TestSession_Reset(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	s.Load(snapshot(1, 2))
	_, _ = s.Decide(true)
	_, _ = s.Decide(true)

	s.Reset()

	p := s.Progress()
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, 0, p.Cursor)
	assert.Equal(t, 0, p.Decided)
}

func TestSession_LoadDiscardsDecisions(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	s.Load(snapshot(1, 2, 3))
	_, _ = s.Decide(true)
	_, _ = s.Decide(false)

	s.Load(snapshot(1, 3))

	assert.Equal(t, 0, s.Progress().Decided)
	assert.Equal(t, Undecided, s.Decision(1))
}

func TestSession_LoadPreservesDecisions(t *testing.T) {
	s := NewSession(PreserveDecisions, quietLogger())
	s.Load(snapshot(1, 2, 3))
	_, _ = s.Decide(true)
	_, _ = s.Decide(false)

	s.Load(snapshot(1, 3))

	p := s.Progress()
	assert.Equal(t, 0, p.Cursor)
	assert.Equal(t, 1, p.Decided)
	assert.Equal(t, 1, p.Kept)
	assert.Equal(t, Reject, s.Decision(2))

	skipped := s.SkipDecided()
	assert.Equal(t, 1, skipped)
	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 3, current.ID)
}

func TestSession_KeptAndRejectedTables(t *testing.T) {
	s := NewSession(DiscardDecisions, quietLogger())
	s.Load(snapshot(5, 6, 7, 8))
	for _, keep := range []bool{true, false, true} {
		_, err := s.Decide(keep)
		require.NoError(t, err)
	}

	assert.Equal(t, []int{5, 7}, s.KeptTable().IDs())
	assert.Equal(t, []int{6}, s.RejectedTable().IDs())
	assert.Equal(t, "Title", s.KeptTable().TitleColumn)
}

func TestSession_RestoreFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	first := NewSession(DiscardDecisions, quietLogger())
	first.Load(snapshot(1, 2, 3))
	for _, keep := range []bool{true, false} {
		record, err := first.Decide(keep)
		require.NoError(t, err)
		require.NoError(t, store.SaveDecision(ctx, first.ID(), record, DecisionFor(keep)))
	}

	stored, err := store.LoadDecisions(ctx, first.ID())
	require.NoError(t, err)

	resumed := NewSessionWithID(first.ID(), DiscardDecisions, quietLogger())
	resumed.Load(snapshot(1, 2, 3))
	resumed.Restore(stored)
	resumed.SkipDecided()

	assert.Equal(t, first.Progress(), resumed.Progress())

	require.NoError(t, store.ClearDecisions(ctx, first.ID()))
	stored, err = store.LoadDecisions(ctx, first.ID())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSession_IDsAreUnique(t *testing.T) {
	a := NewSession(DiscardDecisions, quietLogger())
	b := NewSession(DiscardDecisions, quietLogger())
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestParseRetainPolicy(t *testing.T) {
	policy, err := ParseRetainPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DiscardDecisions, policy)

	policy, err = ParseRetainPolicy("Preserve")
	require.NoError(t, err)
	assert.Equal(t, PreserveDecisions, policy)

	_, err = ParseRetainPolicy("forever")
	assert.True(t, logger.IsErrorType(err, logger.ErrorTypeConfig))
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("Y")
	require.NoError(t, err)
	assert.Equal(t, Keep, d)

	d, err = ParseDecision("reject")
	require.NoError(t, err)
	assert.Equal(t, Reject, d)

	_, err = ParseDecision("maybe")
	assert.Error(t, err)
}
