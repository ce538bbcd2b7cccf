// Package optimistic synthesizes placeholder entities for speculative cache
// writes made before the server confirms a create.
package optimistic

import "boardcore/pkg/domain"

// Synthesize builds the category a create request will most likely produce.
// User supplied fields are copied; server assigned fields carry sentinels:
// the identity is domain.UnconfirmedID and timestamps are zero. The result is
// appended at the end of the collection by the caller.
func Synthesize(req domain.CreateCategoryRequest) domain.Category {
	c := domain.Category{
		ID:          domain.UnconfirmedID,
		Title:       req.Title,
		Description: req.Description,
		Color:       req.Color,
	}
	if req.Labels != nil {
		c.Labels = append([]string(nil), req.Labels...)
	}
	return c
}

// IsOptimistic reports whether c is a placeholder awaiting confirmation.
func IsOptimistic(c domain.Category) bool {
	return !c.Confirmed()
}
