// Package memory provides an in-memory implementation of the board persistence
// store used for tests, demos and as the transactional core of the durable
// backends.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boardcore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Category aliases domain.Category for in-memory persistence operations.
	Category = domain.Category
	// Collection aliases domain.Collection.
	Collection = domain.Collection
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	categories Collection
	revision   uint64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Categories Collection `json:"categories"`
	Revision   uint64     `json:"revision"`
}

func (s memoryState) clone() memoryState {
	categories := s.categories.Clone()
	if categories == nil {
		categories = Collection{}
	}
	return memoryState{categories: categories, revision: s.revision}
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source stamped on created and updated records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides identity assignment for records created without one.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store provides an in-memory transactional store for the board.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
	newID func() string
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: memoryState{categories: Collection{}},
		nowFn: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state.clone()
	return Snapshot{Categories: st.categories, Revision: st.revision}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryState{categories: snapshot.Categories, revision: snapshot.Revision}.clone()
}

// Revision returns the number of committed transactions that changed state.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.revision
}

// RunInTransaction executes fn against a private copy of the state. The copy
// replaces the live state only when fn succeeds.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx Transaction) error) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if len(tx.changes) > 0 {
		tx.state.revision++
	}
	s.state = tx.state
	return tx.changes, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: &snapshot})
}

// ListCategories returns the ordered collection.
func (s *Store) ListCategories() Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone().categories
}

// GetCategory returns the category with the given identity.
func (s *Store) GetCategory(id string) (Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(&s.state, id)
}

func find(state *memoryState, id string) (Category, bool) {
	idx := state.categories.Index(id)
	if idx < 0 {
		return Category{}, false
	}
	return state.categories[idx].Clone(), true
}

type transactionView struct {
	state *memoryState
}

func (v transactionView) ListCategories() Collection {
	return v.state.categories.Clone()
}

func (v transactionView) FindCategory(id string) (Category, bool) {
	return find(v.state, id)
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}

func (tx *transaction) FindCategory(id string) (Category, bool) {
	return find(&tx.state, id)
}

// CreateCategory appends c at the end of the collection.
func (tx *transaction) CreateCategory(c Category) (Category, error) {
	if c.ID == domain.UnconfirmedID {
		c.ID = tx.store.newID()
	}
	if tx.state.categories.Index(c.ID) >= 0 {
		return Category{}, fmt.Errorf("category %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.categories = append(tx.state.categories, c.Clone())
	tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionCreate, After: c.Clone()})
	return c.Clone(), nil
}

// UpdateCategory mutates a category in place using mutator.
func (tx *transaction) UpdateCategory(id string, mutator func(*Category) error) (Category, error) {
	idx := tx.state.categories.Index(id)
	if idx < 0 {
		return Category{}, domain.ErrNotFound{Entity: domain.EntityCategory, ID: id}
	}
	before := tx.state.categories[idx].Clone()
	current := before.Clone()
	if err := mutator(&current); err != nil {
		return Category{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.categories[idx] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current, nil
}

// MoveCategory relocates a category to position using remove-then-insert
// semantics. Positions outside [0, len) are rejected.
func (tx *transaction) MoveCategory(id string, position int) (Category, error) {
	from := tx.state.categories.Index(id)
	if from < 0 {
		return Category{}, domain.ErrNotFound{Entity: domain.EntityCategory, ID: id}
	}
	if position < 0 || position >= len(tx.state.categories) {
		return Category{}, fmt.Errorf("move category %q to %d of %d: %w", id, position, len(tx.state.categories), domain.ErrInvalidPosition)
	}
	moved := tx.state.categories[from].Clone()
	if position == from {
		return moved, nil
	}
	tx.state.categories = tx.state.categories.Move(from, position)
	tx.recordChange(Change{
		Entity: domain.EntityCategory,
		Action: domain.ActionReposition,
		Before: from,
		After:  position,
	})
	return moved, nil
}

// DeleteCategory removes every category carrying id and reports how many went.
func (tx *transaction) DeleteCategory(id string) (int, error) {
	kept := make(Collection, 0, len(tx.state.categories))
	var removed []Category
	for _, c := range tx.state.categories {
		if c.ID == id {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	if len(removed) == 0 {
		return 0, domain.ErrNotFound{Entity: domain.EntityCategory, ID: id}
	}
	tx.state.categories = kept
	for _, c := range removed {
		tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionDelete, Before: c.Clone()})
	}
	return len(removed), nil
}
