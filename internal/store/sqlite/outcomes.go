package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harmonlabs/learnd/internal/outcome"
)

// CreateOutcome inserts a newly tracked action. The unique constraint on
// action_id enforces one row per tracked action.
func (s *Store) CreateOutcome(ctx context.Context, row *outcome.ActionOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_outcomes (
			id, action_type, action_id, conversation_id, message_id,
			original_value, outcome, modified_value,
			was_modified_quickly, was_deleted_quickly, created_at, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.ActionType, row.ActionID, row.ConversationID, row.MessageID,
		row.OriginalValue, string(row.Outcome), row.ModifiedValue,
		row.WasModifiedQuickly, row.WasDeletedQuickly, row.CreatedAt, row.RecordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return outcome.ErrAlreadyTracked
		}
		return fmt.Errorf("failed to insert action outcome: %w", err)
	}
	return nil
}

// GetByActionID fetches the row for an action.
func (s *Store) GetByActionID(ctx context.Context, actionID string) (*outcome.ActionOutcome, error) {
	var row outcome.ActionOutcome
	var outcomeType string
	var recordedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, action_type, action_id, conversation_id, message_id,
			original_value, outcome, modified_value,
			was_modified_quickly, was_deleted_quickly, created_at, recorded_at
		FROM action_outcomes WHERE action_id = ?`,
		actionID).Scan(
		&row.ID, &row.ActionType, &row.ActionID, &row.ConversationID, &row.MessageID,
		&row.OriginalValue, &outcomeType, &row.ModifiedValue,
		&row.WasModifiedQuickly, &row.WasDeletedQuickly, &row.CreatedAt, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.ErrNotTracked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan action outcome: %w", err)
	}

	row.Outcome = outcome.Type(outcomeType)
	if recordedAt.Valid {
		t := recordedAt.Time
		row.RecordedAt = &t
	}
	return &row, nil
}

// UpdateOutcome writes the observed outcome fields.
func (s *Store) UpdateOutcome(ctx context.Context, row *outcome.ActionOutcome) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE action_outcomes
		SET outcome = ?, modified_value = ?,
			was_modified_quickly = ?, was_deleted_quickly = ?, recorded_at = ?
		WHERE action_id = ?`,
		string(row.Outcome), row.ModifiedValue,
		row.WasModifiedQuickly, row.WasDeletedQuickly, row.RecordedAt,
		row.ActionID)
	if err != nil {
		return fmt.Errorf("failed to update action outcome: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return outcome.ErrNotTracked
	}
	return nil
}

var _ outcome.Store = (*Store)(nil)
