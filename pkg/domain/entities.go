// Package domain defines the board entities, request payloads and persistence
// contracts shared by the boardcore client and server layers.
package domain

import (
	"slices"
	"time"
)

// EntityType identifies the type of record managed on a board.
type EntityType string

// Supported entity type identifiers used in Change records and notifications.
const (
	// EntityCategory identifies a board category record.
	EntityCategory EntityType = "category"
)

// Label returns the human readable name used in user facing messages.
func (e EntityType) Label() string {
	switch e {
	case EntityCategory:
		return "Category"
	default:
		return string(e)
	}
}

// UnconfirmedID is the sentinel identity carried by categories that exist only
// in a speculative cache state. Servers never assign it.
const UnconfirmedID = ""

// Category is one column of a board. Its position is its index in the owning
// Collection and is not stored on the record itself.
type Category struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Confirmed reports whether the category carries a server assigned identity.
func (c Category) Confirmed() bool {
	return c.ID != UnconfirmedID
}

// Clone returns a deep copy of the category.
func (c Category) Clone() Category {
	cp := c
	if c.Labels != nil {
		cp.Labels = append([]string(nil), c.Labels...)
	}
	return cp
}

// Equal reports whether two categories carry identical field values.
func (c Category) Equal(other Category) bool {
	return c.ID == other.ID &&
		c.Title == other.Title &&
		c.Description == other.Description &&
		c.Color == other.Color &&
		slices.Equal(c.Labels, other.Labels) &&
		c.CreatedAt.Equal(other.CreatedAt) &&
		c.UpdatedAt.Equal(other.UpdatedAt)
}

// Collection is the ordered list of categories cached under one resource key.
// Order is the persisted position.
type Collection []Category

// Clone deep-copies the collection. A nil collection stays nil.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	for i, item := range c {
		out[i] = item.Clone()
	}
	return out
}

// IDs lists the identities in collection order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i, item := range c {
		ids[i] = item.ID
	}
	return ids
}

// Index returns the position of the category with the given identity, or -1.
func (c Collection) Index(id string) int {
	for i, item := range c {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Equal reports element-wise equality including order.
func (c Collection) Equal(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if !c[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Move returns a copy of c with the element at from removed and reinserted at
// index to of the shortened sequence. Both indices must be in range.
func (c Collection) Move(from, to int) Collection {
	item := c[from].Clone()
	without := make(Collection, 0, len(c))
	without = append(without, c[:from]...)
	without = append(without, c[from+1:]...)

	out := make(Collection, 0, len(c))
	out = append(out, without[:to].Clone()...)
	out = append(out, item)
	return append(out, without[to:].Clone()...)
}

// Change describes a committed mutation recorded by a store transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action captures the type of change applied to an entity.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionReposition indicates an entity moved within its collection.
	ActionReposition Action = "reposition"
	ActionDelete     Action = "delete"
)
