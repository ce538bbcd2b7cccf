package mutation

import (
	"boardcore/internal/optimistic"
	"boardcore/internal/snapshot"
	"boardcore/pkg/domain"
)

// The transforms below are pure: they never modify their input and always
// return a freshly allocated collection. present is false when nothing was
// cached for the key.

// CreateTransform appends the optimistic form of req at the end.
func CreateTransform(current domain.Collection, present bool, req domain.CreateCategoryRequest) domain.Collection {
	item := optimistic.Synthesize(req)
	if !present {
		return domain.Collection{item}
	}
	out := make(domain.Collection, 0, len(current)+1)
	out = append(out, current.Clone()...)
	return append(out, item)
}

// UpdateTransform overlays req onto the category it targets. When the target
// is not cached the result is an empty collection; the settlement refetch
// repopulates it.
func UpdateTransform(current domain.Collection, present bool, req domain.UpdateCategoryRequest) domain.Collection {
	if !present {
		return domain.Collection{}
	}
	idx, found, ok := snapshot.LocateByID(req.ID, current)
	if !ok {
		return domain.Collection{}
	}
	out := current.Clone()
	out[idx] = req.Apply(found)
	return out
}

// RepositionTransform moves the target to req.Position using remove-then-insert
// semantics. Missing targets, identical positions and positions outside
// [0, len) leave the collection unchanged.
func RepositionTransform(current domain.Collection, present bool, req domain.RepositionCategoryRequest) domain.Collection {
	if !present {
		return domain.Collection{}
	}
	from, _, ok := snapshot.LocateByID(req.ID, current)
	to := req.Position
	if !ok || to == from || to < 0 || to >= len(current) {
		return current.Clone()
	}
	return current.Move(from, to)
}

// DeleteTransform drops every category whose identity equals req.ID.
func DeleteTransform(current domain.Collection, present bool, req domain.DeleteCategoryRequest) domain.Collection {
	out := make(domain.Collection, 0, len(current))
	if !present {
		return out
	}
	for _, item := range current {
		if item.ID == req.ID {
			continue
		}
		out = append(out, item.Clone())
	}
	return out
}
