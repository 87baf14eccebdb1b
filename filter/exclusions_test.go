package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExclusions_AddRemoveContains(t *testing.T) {
	e := NewExclusions(3, 1)
	e.Add(7, 3, -5)

	assert.True(t, e.Contains(1))
	assert.True(t, e.Contains(7))
	assert.False(t, e.Contains(2))
	assert.False(t, e.Contains(-5))
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, []int{1, 3, 7}, e.IDs())

	e.Remove(3, 100)
	assert.Equal(t, []int{1, 7}, e.IDs())
}

func TestExclusions_NilIsEmpty(t *testing.T) {
	var e *Exclusions

	assert.False(t, e.Contains(0))
	assert.Equal(t, 0, e.Len())
	assert.Nil(t, e.IDs())
	assert.Equal(t, 0, e.Clone().Len())
}

func TestExclusions_CloneIsIndependent(t *testing.T) {
	e := NewExclusions(1, 2)
	clone := e.Clone()

	clone.Add(3)
	e.Clear()

	assert.Equal(t, 0, e.Len())
	assert.Equal(t, []int{1, 2, 3}, clone.IDs())
}
