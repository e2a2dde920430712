package preference

import (
	"context"
	"sort"
	"sync"
)

// Store persists learned preferences.
//
// Implementations must guarantee at most one active row per
// (category, key) and make CreateActive/Supersede atomic with respect to
// that guarantee. Callers that lose a race receive ErrActiveConflict and
// retry their read-then-write.
type Store interface {
	// CreateActive inserts a new active row. Returns ErrActiveConflict
	// when an active row for (category, key) already exists.
	CreateActive(ctx context.Context, p *LearnedPreference) error

	// GetActive returns the active row for (category, key), or
	// ErrPreferenceNotFound.
	GetActive(ctx context.Context, category Category, key string) (*LearnedPreference, error)

	// GetByID returns a row by its ID, active or superseded.
	GetByID(ctx context.Context, id string) (*LearnedPreference, error)

	// Update rewrites an active row in place (reinforcement). Returns
	// ErrPreferenceNotFound when the row is missing and ErrActiveConflict
	// when the stored row is no longer active, so a caller holding a stale
	// copy cannot resurrect a superseded row.
	Update(ctx context.Context, p *LearnedPreference) error

	// Supersede atomically retires the row with ID oldID and inserts
	// replacement as the new active row for the same key. Returns
	// ErrActiveConflict when oldID is no longer the active row.
	Supersede(ctx context.Context, oldID string, replacement *LearnedPreference) error

	// ListActive returns active rows at or above minConfidence. With an
	// empty category list, all categories are included. Results are
	// ordered by category, then key.
	ListActive(ctx context.Context, categories []Category, minConfidence float64) ([]*LearnedPreference, error)

	// ListByKey returns every row, active and superseded, for
	// (category, key), newest first.
	ListByKey(ctx context.Context, category Category, key string) ([]*LearnedPreference, error)
}

// InMemoryStore is an in-memory Store for testing.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*LearnedPreference // id -> row
}

// NewInMemoryStore creates an empty in-memory preference store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]*LearnedPreference)}
}

func (s *InMemoryStore) activeLocked(category Category, key string) *LearnedPreference {
	for _, row := range s.rows {
		if row.Category == category && row.Key == key && row.Status == StatusActive {
			return row
		}
	}
	return nil
}

func clone(p *LearnedPreference) *LearnedPreference {
	c := *p
	c.SourceIDs = append([]string(nil), p.SourceIDs...)
	return &c
}

// CreateActive inserts the row, enforcing single-active-per-key.
func (s *InMemoryStore) CreateActive(ctx context.Context, p *LearnedPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeLocked(p.Category, p.Key) != nil {
		return ErrActiveConflict
	}
	s.rows[p.ID] = clone(p)
	return nil
}

// GetActive returns a copy of the active row for (category, key).
func (s *InMemoryStore) GetActive(ctx context.Context, category Category, key string) (*LearnedPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.activeLocked(category, key)
	if row == nil {
		return nil, ErrPreferenceNotFound
	}
	return clone(row), nil
}

// GetByID returns a copy of the row with the given ID.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*LearnedPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, ErrPreferenceNotFound
	}
	return clone(row), nil
}

// Update replaces the stored row, refusing to touch rows that were
// superseded since the caller read them.
func (s *InMemoryStore) Update(ctx context.Context, p *LearnedPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[p.ID]
	if !ok {
		return ErrPreferenceNotFound
	}
	if row.Status != StatusActive {
		return ErrActiveConflict
	}
	s.rows[p.ID] = clone(p)
	return nil
}

// Supersede retires oldID and installs replacement as the active row.
func (s *InMemoryStore) Supersede(ctx context.Context, oldID string, replacement *LearnedPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.rows[oldID]
	if !ok {
		return ErrPreferenceNotFound
	}
	if old.Status != StatusActive {
		return ErrActiveConflict
	}

	old.Status = StatusSuperseded
	old.SupersededBy = replacement.ID
	old.UpdatedAt = replacement.CreatedAt

	s.rows[replacement.ID] = clone(replacement)
	return nil
}

// ListActive returns active rows filtered by category and confidence.
func (s *InMemoryStore) ListActive(ctx context.Context, categories []Category, minConfidence float64) ([]*LearnedPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	var out []*LearnedPreference
	for _, row := range s.rows {
		if row.Status != StatusActive {
			continue
		}
		if row.Confidence < minConfidence {
			continue
		}
		if len(wanted) > 0 && !wanted[row.Category] {
			continue
		}
		out = append(out, clone(row))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// ListByKey returns the full history for (category, key), newest first.
func (s *InMemoryStore) ListByKey(ctx context.Context, category Category, key string) ([]*LearnedPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*LearnedPreference
	for _, row := range s.rows {
		if row.Category == category && row.Key == key {
			out = append(out, clone(row))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ Store = (*InMemoryStore)(nil)
