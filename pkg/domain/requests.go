package domain

// ResourceKey names a collection in the client cache.
type ResourceKey string

// CategoriesKey identifies the category collection of the board.
const CategoriesKey ResourceKey = "categories"

// CreateCategoryRequest carries the user supplied fields of a new category.
type CreateCategoryRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description,omitempty" validate:"max=2000"`
	Color       string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Labels      []string `json:"labels,omitempty" validate:"max=32,dive,required,max=64"`
}

// UpdateCategoryRequest is a partial update. Nil fields are left untouched.
type UpdateCategoryRequest struct {
	ID          string    `json:"id" validate:"required"`
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Color       *string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Labels      *[]string `json:"labels,omitempty" validate:"omitempty,max=32,dive,required,max=64"`
}

// Apply overlays the request fields onto c and returns the merged category.
// c is cloned first, so the caller's value is never modified.
func (r UpdateCategoryRequest) Apply(c Category) Category {
	out := c.Clone()
	if r.Title != nil {
		out.Title = *r.Title
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	if r.Color != nil {
		out.Color = *r.Color
	}
	if r.Labels != nil {
		out.Labels = append([]string(nil), (*r.Labels)...)
	}
	return out
}

// RepositionCategoryRequest moves a category to Position within its collection.
type RepositionCategoryRequest struct {
	ID       string `json:"id" validate:"required"`
	Position int    `json:"position"`
}

// DeleteCategoryRequest removes a category.
type DeleteCategoryRequest struct {
	ID string `json:"id" validate:"required"`
}

// DeleteReceipt is the server acknowledgement of a delete.
type DeleteReceipt struct {
	Affected int `json:"affected"`
}
