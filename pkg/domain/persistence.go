package domain

import "context"

// Transaction exposes the category operations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateCategory(Category) (Category, error)
	UpdateCategory(id string, mutator func(*Category) error) (Category, error)
	MoveCategory(id string, position int) (Category, error)
	DeleteCategory(id string) (int, error)
	FindCategory(id string) (Category, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListCategories() Collection
	FindCategory(id string) (Category, bool)
}

// PersistentStore is a minimal abstraction over durable backends holding the
// authoritative category collection.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) ([]Change, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ListCategories() Collection
	GetCategory(id string) (Category, bool)
}
