package sqlite

import (
	"context"
	"fmt"

	"github.com/harmonlabs/learnd/internal/correction"
)

// CreateEvent inserts a correction event.
func (s *Store) CreateEvent(ctx context.Context, e *correction.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_events (
			id, conversation_id, trigger_message_id, correction_message_id,
			type, original_value, corrected_value, pattern_matched,
			domain, extracted_lesson, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConversationID, e.TriggerMessageID, e.CorrectionMessageID,
		string(e.Type), e.OriginalValue, e.CorrectedValue, e.PatternMatched,
		e.Domain, e.ExtractedLesson, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert correction event: %w", err)
	}
	return nil
}

// ListEvents returns the correction events for a conversation, oldest
// first.
func (s *Store) ListEvents(ctx context.Context, conversationID string) ([]correction.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, trigger_message_id, correction_message_id,
			type, original_value, corrected_value, pattern_matched,
			domain, extracted_lesson, created_at
		FROM correction_events
		WHERE conversation_id = ?
		ORDER BY created_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query correction events: %w", err)
	}
	defer rows.Close()

	events := []correction.Event{}
	for rows.Next() {
		var e correction.Event
		var corrType string
		if err := rows.Scan(
			&e.ID, &e.ConversationID, &e.TriggerMessageID, &e.CorrectionMessageID,
			&corrType, &e.OriginalValue, &e.CorrectedValue, &e.PatternMatched,
			&e.Domain, &e.ExtractedLesson, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correction event: %w", err)
		}
		e.Type = correction.Type(corrType)
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ correction.EventStore = (*Store)(nil)
