// Package snapshot captures independent copies of cached collections and
// locates elements within them.
package snapshot

import "boardcore/pkg/domain"

// NotFound is the index reported by Locate when no element matches.
const NotFound = -1

// Locate returns the index of the first category matching pred together with
// a deep clone of it. The clone is owned by the caller; mutating it never
// affects c or any other clone.
func Locate(pred func(domain.Category) bool, c domain.Collection) (int, domain.Category, bool) {
	for i, item := range c {
		if pred(item) {
			return i, item.Clone(), true
		}
	}
	return NotFound, domain.Category{}, false
}

// LocateByID is Locate with an identity predicate.
func LocateByID(id string, c domain.Collection) (int, domain.Category, bool) {
	return Locate(func(item domain.Category) bool { return item.ID == id }, c)
}

// Snapshot is the pre-mutation copy of a collection held by one invocation.
type Snapshot struct {
	collection domain.Collection
	present    bool
}

// Capture deep-copies c. present records whether the cache held a value at all.
func Capture(c domain.Collection, present bool) Snapshot {
	if !present {
		return Snapshot{}
	}
	return Snapshot{collection: c.Clone(), present: true}
}

// Present reports whether a collection was cached when the snapshot was taken.
func (s Snapshot) Present() bool {
	return s.present
}

// Len returns the number of captured categories.
func (s Snapshot) Len() int {
	return len(s.collection)
}

// Restore returns a fresh copy of the captured collection.
func (s Snapshot) Restore() (domain.Collection, bool) {
	if !s.present {
		return nil, false
	}
	out := s.collection.Clone()
	if out == nil {
		out = domain.Collection{}
	}
	return out, true
}
