package expectation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists expectations.
type Store interface {
	// CreateExpectation inserts a new row.
	CreateExpectation(ctx context.Context, e *Expectation) error

	// GetExpectation returns a row by ID, or ErrNotFound.
	GetExpectation(ctx context.Context, id string) (*Expectation, error)

	// UpdateExpectation rewrites a row. Returns ErrNotFound when missing.
	UpdateExpectation(ctx context.Context, e *Expectation) error

	// ListByStatus returns rows in the given status, oldest first. An
	// empty subject matches all subjects.
	ListByStatus(ctx context.Context, status Status, subject Subject) ([]*Expectation, error)

	// ListOverdue returns pending rows whose DueBy is before cutoff,
	// oldest first.
	ListOverdue(ctx context.Context, cutoff time.Time) ([]*Expectation, error)
}

// FindingSink receives contradiction findings. Implemented by whatever
// insight pipeline the host system runs; the sqlite store provides a
// table-backed one.
type FindingSink interface {
	EmitFinding(ctx context.Context, f *ContradictionFinding) error
}

// InMemoryStore is an in-memory Store for testing.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Expectation
}

// NewInMemoryStore creates an empty in-memory expectation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]*Expectation)}
}

func cloneExpectation(e *Expectation) *Expectation {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]string, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	if e.ObservedValue != nil {
		v := *e.ObservedValue
		c.ObservedValue = &v
	}
	if e.WasCorrect != nil {
		v := *e.WasCorrect
		c.WasCorrect = &v
	}
	if e.EvaluatedAt != nil {
		v := *e.EvaluatedAt
		c.EvaluatedAt = &v
	}
	return &c
}

// CreateExpectation inserts the row.
func (s *InMemoryStore) CreateExpectation(ctx context.Context, e *Expectation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[e.ID] = cloneExpectation(e)
	return nil
}

// GetExpectation returns a copy of the row with the given ID.
func (s *InMemoryStore) GetExpectation(ctx context.Context, id string) (*Expectation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneExpectation(row), nil
}

// UpdateExpectation replaces the stored row.
func (s *InMemoryStore) UpdateExpectation(ctx context.Context, e *Expectation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[e.ID]; !ok {
		return ErrNotFound
	}
	s.rows[e.ID] = cloneExpectation(e)
	return nil
}

// ListByStatus returns rows in the given status, oldest first.
func (s *InMemoryStore) ListByStatus(ctx context.Context, status Status, subject Subject) ([]*Expectation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Expectation
	for _, row := range s.rows {
		if row.Status != status {
			continue
		}
		if subject != "" && row.Subject != subject {
			continue
		}
		out = append(out, cloneExpectation(row))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListOverdue returns pending rows due before cutoff, oldest first.
func (s *InMemoryStore) ListOverdue(ctx context.Context, cutoff time.Time) ([]*Expectation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Expectation
	for _, row := range s.rows {
		if row.Status == StatusPending && row.DueBy.Before(cutoff) {
			out = append(out, cloneExpectation(row))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DueBy.Before(out[j].DueBy)
	})
	return out, nil
}

var _ Store = (*InMemoryStore)(nil)

// InMemoryFindingSink collects findings for testing.
type InMemoryFindingSink struct {
	mu       sync.Mutex
	findings []*ContradictionFinding
}

// NewInMemoryFindingSink creates an empty finding sink.
func NewInMemoryFindingSink() *InMemoryFindingSink {
	return &InMemoryFindingSink{}
}

// EmitFinding appends the finding.
func (s *InMemoryFindingSink) EmitFinding(ctx context.Context, f *ContradictionFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, f)
	return nil
}

// Findings returns the collected findings.
func (s *InMemoryFindingSink) Findings() []*ContradictionFinding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ContradictionFinding(nil), s.findings...)
}

var _ FindingSink = (*InMemoryFindingSink)(nil)
