// Package outcome records actions taken by the assistant and the user's
// eventual response to them. Quick modifications and deletions are
// surfaced to the preference learner as suspicious outcomes.
package outcome

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for outcome tracking.
var (
	ErrEmptyActionID   = errors.New("action ID cannot be empty")
	ErrEmptyActionType = errors.New("action type cannot be empty")
	ErrAlreadyTracked  = errors.New("action already tracked")
	ErrNotTracked      = errors.New("action not tracked")
	ErrAlreadyRecorded = errors.New("outcome already recorded")
	ErrInvalidOutcome  = errors.New("invalid outcome type")
)

// Type is what eventually happened to a tracked action.
type Type string

const (
	// TypeUnset means no outcome has been observed yet.
	TypeUnset Type = ""

	// TypeConfirmed means the user accepted the action as-is.
	TypeConfirmed Type = "confirmed"

	// TypeModified means the user changed the action's result.
	TypeModified Type = "modified"

	// TypeDeleted means the user removed the action's result.
	TypeDeleted Type = "deleted"
)

// ValidType reports whether t is a recordable outcome type.
func ValidType(t Type) bool {
	switch t {
	case TypeConfirmed, TypeModified, TypeDeleted:
		return true
	}
	return false
}

// ActionOutcome is one tracked action and, once observed, its outcome.
// Exactly one row exists per action ID; the row is created on tracking
// and updated exactly once when the outcome is observed.
type ActionOutcome struct {
	// ID is the unique row identifier (UUID).
	ID string `json:"id"`

	// ActionType names the kind of action ("task_created", "reminder_set", ...).
	ActionType string `json:"action_type"`

	// ActionID uniquely identifies the tracked action.
	ActionID string `json:"action_id"`

	// ConversationID and MessageID locate the action in conversation, if known.
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`

	// OriginalValue is what the action produced.
	OriginalValue string `json:"original_value"`

	// Outcome is what happened to the action; TypeUnset until recorded.
	Outcome Type `json:"outcome"`

	// ModifiedValue is the replacement value for modified outcomes.
	ModifiedValue string `json:"modified_value,omitempty"`

	// WasModifiedQuickly and WasDeletedQuickly are derived: the outcome
	// arrived within the quick-change window of tracking. Quick changes
	// suggest the assistant's default was wrong.
	WasModifiedQuickly bool `json:"was_modified_quickly"`
	WasDeletedQuickly  bool `json:"was_deleted_quickly"`

	// CreatedAt is when the action was tracked.
	CreatedAt time.Time `json:"created_at"`

	// RecordedAt is when the outcome was observed, nil until then.
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// NewActionOutcome creates a tracked action with a generated row UUID.
func NewActionOutcome(actionType, actionID, originalValue string) (*ActionOutcome, error) {
	if actionType == "" {
		return nil, ErrEmptyActionType
	}
	if actionID == "" {
		return nil, ErrEmptyActionID
	}

	return &ActionOutcome{
		ID:            uuid.New().String(),
		ActionType:    actionType,
		ActionID:      actionID,
		OriginalValue: originalValue,
		Outcome:       TypeUnset,
		CreatedAt:     time.Now(),
	}, nil
}
