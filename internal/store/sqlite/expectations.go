package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harmonlabs/learnd/internal/expectation"
)

const expectationColumns = `id, subject, expected_value, comparator, window_hours,
	because_finding_id, rationale, context, due_by, status,
	observed_value, was_correct, evaluated_at, created_at`

// CreateExpectation inserts a new expectation row.
func (s *Store) CreateExpectation(ctx context.Context, e *expectation.Expectation) error {
	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("failed to encode expectation context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO expectations (`+expectationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Subject), e.Expected.Value, string(e.Expected.Comparator),
		e.Expected.WindowHours, e.Because.FindingID, e.Because.Rationale,
		string(contextJSON), e.DueBy, string(e.Status),
		e.ObservedValue, wasCorrectParam(e.WasCorrect), e.EvaluatedAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert expectation: %w", err)
	}
	return nil
}

// GetExpectation returns a row by ID.
func (s *Store) GetExpectation(ctx context.Context, id string) (*expectation.Expectation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+expectationColumns+`
		FROM expectations WHERE id = ?`, id)
	return scanExpectation(row)
}

// UpdateExpectation rewrites the mutable evaluation fields.
func (s *Store) UpdateExpectation(ctx context.Context, e *expectation.Expectation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE expectations
		SET status = ?, observed_value = ?, was_correct = ?, evaluated_at = ?
		WHERE id = ?`,
		string(e.Status), e.ObservedValue, wasCorrectParam(e.WasCorrect),
		e.EvaluatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update expectation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return expectation.ErrNotFound
	}
	return nil
}

// ListByStatus returns rows in the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status expectation.Status, subject expectation.Subject) ([]*expectation.Expectation, error) {
	query := `SELECT ` + expectationColumns + `
		FROM expectations WHERE status = ?`
	args := []any{string(status)}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, string(subject))
	}
	query += ` ORDER BY created_at ASC`

	return s.queryExpectations(ctx, query, args...)
}

// ListOverdue returns pending rows due before cutoff, oldest first.
func (s *Store) ListOverdue(ctx context.Context, cutoff time.Time) ([]*expectation.Expectation, error) {
	return s.queryExpectations(ctx, `
		SELECT `+expectationColumns+`
		FROM expectations
		WHERE status = ? AND due_by < ?
		ORDER BY due_by ASC`,
		string(expectation.StatusPending), cutoff)
}

func (s *Store) queryExpectations(ctx context.Context, query string, args ...any) ([]*expectation.Expectation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expectations: %w", err)
	}
	defer rows.Close()

	var out []*expectation.Expectation
	for rows.Next() {
		e, err := scanExpectation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExpectation(row rowScanner) (*expectation.Expectation, error) {
	var e expectation.Expectation
	var subject, comparator, status, contextJSON string
	var observed sql.NullFloat64
	var correct sql.NullBool
	var evaluatedAt sql.NullTime

	err := row.Scan(
		&e.ID, &subject, &e.Expected.Value, &comparator, &e.Expected.WindowHours,
		&e.Because.FindingID, &e.Because.Rationale, &contextJSON, &e.DueBy, &status,
		&observed, &correct, &evaluatedAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, expectation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expectation: %w", err)
	}

	e.Subject = expectation.Subject(subject)
	e.Expected.Comparator = expectation.Comparator(comparator)
	e.Status = expectation.Status(status)
	if contextJSON != "" && contextJSON != "null" {
		if err := json.Unmarshal([]byte(contextJSON), &e.Context); err != nil {
			return nil, fmt.Errorf("failed to decode expectation context: %w", err)
		}
	}
	if observed.Valid {
		v := observed.Float64
		e.ObservedValue = &v
	}
	if correct.Valid {
		v := correct.Bool
		e.WasCorrect = &v
	}
	if evaluatedAt.Valid {
		t := evaluatedAt.Time
		e.EvaluatedAt = &t
	}
	return &e, nil
}

// wasCorrectParam maps the optional correctness flag onto a nullable
// integer column.
func wasCorrectParam(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}

var _ expectation.Store = (*Store)(nil)
