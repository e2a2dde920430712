package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harmonlabs/learnd/internal/preference"
)

const preferenceColumns = `id, category, key, value, description, confidence,
	source_type, source_ids, reinforcement_count, status, superseded_by,
	created_at, updated_at`

// CreateActive inserts a new active preference row. The partial unique
// index on (category, key) for active rows turns a lost race into
// ErrActiveConflict for the caller to retry as reinforcement.
func (s *Store) CreateActive(ctx context.Context, p *preference.LearnedPreference) error {
	sourceIDs, err := json.Marshal(p.SourceIDs)
	if err != nil {
		return fmt.Errorf("failed to encode source ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (`+preferenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Category), p.Key, p.Value, p.Description, p.Confidence,
		string(p.SourceType), string(sourceIDs), p.ReinforcementCount,
		string(p.Status), p.SupersededBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return preference.ErrActiveConflict
		}
		return fmt.Errorf("failed to insert preference: %w", err)
	}
	return nil
}

// GetActive returns the active row for (category, key).
func (s *Store) GetActive(ctx context.Context, category preference.Category, key string) (*preference.LearnedPreference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM preferences
		WHERE category = ? AND key = ? AND status = ?`,
		string(category), key, string(preference.StatusActive))
	return scanPreference(row)
}

// GetByID returns a row by its ID, active or superseded.
func (s *Store) GetByID(ctx context.Context, id string) (*preference.LearnedPreference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM preferences WHERE id = ?`, id)
	return scanPreference(row)
}

// Update rewrites a preference row in place. The conditional update only
// touches rows that are still active, so a caller holding a stale copy of
// a since-superseded row gets ErrActiveConflict instead of resurrecting it.
func (s *Store) Update(ctx context.Context, p *preference.LearnedPreference) error {
	sourceIDs, err := json.Marshal(p.SourceIDs)
	if err != nil {
		return fmt.Errorf("failed to encode source ids: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE preferences
		SET value = ?, description = ?, confidence = ?, source_ids = ?,
			reinforcement_count = ?, status = ?, superseded_by = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		p.Value, p.Description, p.Confidence, string(sourceIDs),
		p.ReinforcementCount, string(p.Status), p.SupersededBy, p.UpdatedAt,
		p.ID, string(preference.StatusActive))
	if err != nil {
		if isUniqueViolation(err) {
			return preference.ErrActiveConflict
		}
		return fmt.Errorf("failed to update preference: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM preferences WHERE id = ?`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check preference existence: %w", err)
		}
		if exists == 0 {
			return preference.ErrPreferenceNotFound
		}
		return preference.ErrActiveConflict
	}
	return nil
}

// Supersede retires oldID and installs replacement as the active row, in
// one transaction. The conditional update guarantees oldID was still
// active; anything else is a lost race.
func (s *Store) Supersede(ctx context.Context, oldID string, replacement *preference.LearnedPreference) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE preferences
		SET status = ?, superseded_by = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(preference.StatusSuperseded), replacement.ID, replacement.CreatedAt,
		oldID, string(preference.StatusActive))
	if err != nil {
		return fmt.Errorf("failed to retire preference: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check retire result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM preferences WHERE id = ?`, oldID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check preference existence: %w", err)
		}
		if exists == 0 {
			return preference.ErrPreferenceNotFound
		}
		return preference.ErrActiveConflict
	}

	sourceIDs, err := json.Marshal(replacement.SourceIDs)
	if err != nil {
		return fmt.Errorf("failed to encode source ids: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO preferences (`+preferenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		replacement.ID, string(replacement.Category), replacement.Key,
		replacement.Value, replacement.Description, replacement.Confidence,
		string(replacement.SourceType), string(sourceIDs),
		replacement.ReinforcementCount, string(replacement.Status),
		replacement.SupersededBy, replacement.CreatedAt, replacement.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return preference.ErrActiveConflict
		}
		return fmt.Errorf("failed to insert replacement preference: %w", err)
	}

	return tx.Commit()
}

// ListActive returns active rows at or above minConfidence, ordered by
// category then key.
func (s *Store) ListActive(ctx context.Context, categories []preference.Category, minConfidence float64) ([]*preference.LearnedPreference, error) {
	query := `SELECT ` + preferenceColumns + `
		FROM preferences
		WHERE status = ? AND confidence >= ?`
	args := []any{string(preference.StatusActive), minConfidence}

	if len(categories) > 0 {
		placeholders := make([]string, len(categories))
		for i, c := range categories {
			placeholders[i] = "?"
			args = append(args, string(c))
		}
		query += ` AND category IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY category, key`

	return s.queryPreferences(ctx, query, args...)
}

// ListByKey returns the full history for (category, key), newest first.
func (s *Store) ListByKey(ctx context.Context, category preference.Category, key string) ([]*preference.LearnedPreference, error) {
	return s.queryPreferences(ctx, `
		SELECT `+preferenceColumns+`
		FROM preferences
		WHERE category = ? AND key = ?
		ORDER BY created_at DESC`,
		string(category), key)
}

func (s *Store) queryPreferences(ctx context.Context, query string, args ...any) ([]*preference.LearnedPreference, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	var out []*preference.LearnedPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreference(row rowScanner) (*preference.LearnedPreference, error) {
	var p preference.LearnedPreference
	var category, sourceType, status, sourceIDs string

	err := row.Scan(
		&p.ID, &category, &p.Key, &p.Value, &p.Description, &p.Confidence,
		&sourceType, &sourceIDs, &p.ReinforcementCount, &status,
		&p.SupersededBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, preference.ErrPreferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan preference: %w", err)
	}

	p.Category = preference.Category(category)
	p.SourceType = preference.SourceType(sourceType)
	p.Status = preference.Status(status)
	if err := json.Unmarshal([]byte(sourceIDs), &p.SourceIDs); err != nil {
		return nil, fmt.Errorf("failed to decode source ids: %w", err)
	}
	return &p, nil
}

var _ preference.Store = (*Store)(nil)
