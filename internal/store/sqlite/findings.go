package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harmonlabs/learnd/internal/expectation"
)

// EmitFinding persists a contradiction finding.
func (s *Store) EmitFinding(ctx context.Context, f *expectation.ContradictionFinding) error {
	stats, err := json.Marshal(f.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode finding stats: %w", err)
	}
	evidence, err := json.Marshal(f.Evidence)
	if err != nil {
		return fmt.Errorf("failed to encode finding evidence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO findings (
			id, subject, predicate, object, rationale,
			stats, strength, evidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Subject, f.Predicate, f.Object, f.Rationale,
		string(stats), f.Strength, string(evidence), f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert finding: %w", err)
	}
	return nil
}

// ListFindings returns findings newest first, up to limit (0 means no
// limit).
func (s *Store) ListFindings(ctx context.Context, limit int) ([]*expectation.ContradictionFinding, error) {
	query := `
		SELECT id, subject, predicate, object, rationale,
			stats, strength, evidence, created_at
		FROM findings
		ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []*expectation.ContradictionFinding
	for rows.Next() {
		var f expectation.ContradictionFinding
		var stats, evidence string
		if err := rows.Scan(
			&f.ID, &f.Subject, &f.Predicate, &f.Object, &f.Rationale,
			&stats, &f.Strength, &evidence, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &f.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode finding stats: %w", err)
		}
		if err := json.Unmarshal([]byte(evidence), &f.Evidence); err != nil {
			return nil, fmt.Errorf("failed to decode finding evidence: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

var _ expectation.FindingSink = (*Store)(nil)
