package outcome

import (
	"context"
	"sync"
)

// Store persists action outcomes, one row per action ID.
type Store interface {
	// CreateOutcome inserts a newly tracked action. Returns
	// ErrAlreadyTracked when a row for the action ID already exists.
	CreateOutcome(ctx context.Context, row *ActionOutcome) error

	// GetByActionID fetches the row for an action. Returns ErrNotTracked
	// when the action was never tracked.
	GetByActionID(ctx context.Context, actionID string) (*ActionOutcome, error)

	// UpdateOutcome writes the observed outcome fields. Returns
	// ErrNotTracked when the row is missing.
	UpdateOutcome(ctx context.Context, row *ActionOutcome) error
}

// InMemoryStore is an in-memory Store for testing.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*ActionOutcome // actionID -> row
}

// NewInMemoryStore creates an empty in-memory outcome store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]*ActionOutcome)}
}

// CreateOutcome inserts the row, enforcing one row per action ID.
func (s *InMemoryStore) CreateOutcome(ctx context.Context, row *ActionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[row.ActionID]; exists {
		return ErrAlreadyTracked
	}
	clone := *row
	s.rows[row.ActionID] = &clone
	return nil
}

// GetByActionID returns a copy of the row for the action.
func (s *InMemoryStore) GetByActionID(ctx context.Context, actionID string) (*ActionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[actionID]
	if !ok {
		return nil, ErrNotTracked
	}
	clone := *row
	return &clone, nil
}

// UpdateOutcome replaces the stored row.
func (s *InMemoryStore) UpdateOutcome(ctx context.Context, row *ActionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[row.ActionID]; !ok {
		return ErrNotTracked
	}
	clone := *row
	s.rows[row.ActionID] = &clone
	return nil
}

var _ Store = (*InMemoryStore)(nil)
