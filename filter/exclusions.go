package filter

import (
	"math"

	"github.com/RoaringBitmap/roaring"
)

// Exclusions is the set of record ids removed by hand. It survives filter
// re-application until cleared. Not safe for concurrent use.
type Exclusions struct {
	ids *roaring.Bitmap
}

// NewExclusions creates a set holding ids
func NewExclusions(ids ...int) *Exclusions {
	e := &Exclusions{ids: roaring.New()}
	e.Add(ids...)
	return e
}

func toKey(id int) (uint32, bool) {
	if id < 0 || uint64(id) > math.MaxUint32 {
		return 0, false
	}
	return uint32(id), true
}

// Add marks ids as excluded; ids outside the uint32 range are ignored
func (e *Exclusions) Add(ids ...int) {
	for _, id := range ids {
		if key, ok := toKey(id); ok {
			e.ids.Add(key)
		}
	}
}

// Remove un-excludes ids
func (e *Exclusions) Remove(ids ...int) {
	for _, id := range ids {
		if key, ok := toKey(id); ok {
			e.ids.Remove(key)
		}
	}
}

// Contains reports whether id is excluded. A nil set contains nothing.
func (e *Exclusions) Contains(id int) bool {
	if e == nil {
		return false
	}
	key, ok := toKey(id)
	return ok && e.ids.Contains(key)
}

// Len returns the number of excluded ids
func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return int(e.ids.GetCardinality())
}

// IDs returns the excluded ids in ascending order
func (e *Exclusions) IDs() []int {
	if e == nil {
		return nil
	}
	keys := e.ids.ToArray()
	ids := make([]int, len(keys))
	for i, key := range keys {
		ids[i] = int(key)
	}
	return ids
}

// Clear empties the set
func (e *Exclusions) Clear() {
	e.ids.Clear()
}

// Clone returns an independent copy
func (e *Exclusions) Clone() *Exclusions {
	if e == nil {
		return NewExclusions()
	}
	return &Exclusions{ids: e.ids.Clone()}
}
