// Package correction detects user corrections of assistant actions and
// records them as append-only correction events. Detection is two-tier:
// a zero-cost keyword pass, then an optional model-backed deep pass.
package correction

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for correction operations.
var (
	ErrEmptyConversationID = errors.New("conversation ID cannot be empty")
	ErrEmptyMessage        = errors.New("user message cannot be empty")
	ErrInvalidType         = errors.New("invalid correction type")
)

// Type categorizes how the user corrected the assistant.
type Type string

const (
	// TypeExplicit is a direct statement that the assistant was wrong.
	TypeExplicit Type = "explicit"

	// TypeImplicit is a softer redirection ("actually, I meant...").
	TypeImplicit Type = "implicit"

	// TypeModification asks for a change to what the assistant produced.
	TypeModification Type = "modification"

	// TypeDeletion undoes something the assistant created.
	TypeDeletion Type = "deletion"

	// TypeRetry asks the assistant to do the same thing over.
	TypeRetry Type = "retry"
)

// ValidType reports whether t is a known correction type.
func ValidType(t Type) bool {
	switch t {
	case TypeExplicit, TypeImplicit, TypeModification, TypeDeletion, TypeRetry:
		return true
	}
	return false
}

// PatternAIDetected marks events whose detection came from the deep
// classification pass rather than a keyword match.
const PatternAIDetected = "ai_detected"

// Event is a detected correction. Events are append-only: created once
// per detected correction and never mutated.
type Event struct {
	// ID is the unique event identifier (UUID).
	ID string `json:"id"`

	// ConversationID identifies the conversation the correction occurred in.
	ConversationID string `json:"conversation_id"`

	// TriggerMessageID is the assistant message being corrected, if known.
	TriggerMessageID string `json:"trigger_message_id,omitempty"`

	// CorrectionMessageID is the user message carrying the correction, if known.
	CorrectionMessageID string `json:"correction_message_id,omitempty"`

	// Type categorizes the correction.
	Type Type `json:"type"`

	// OriginalValue is what the assistant produced, when extracted.
	OriginalValue string `json:"original_value,omitempty"`

	// CorrectedValue is what the user wanted instead, when extracted.
	CorrectedValue string `json:"corrected_value,omitempty"`

	// PatternMatched is the keyword that fired, or PatternAIDetected.
	PatternMatched string `json:"pattern_matched"`

	// Domain tags the subject area ("calendar", "grocery", ...), when known.
	Domain string `json:"domain,omitempty"`

	// ExtractedLesson is a free-text statement of what should be learned.
	ExtractedLesson string `json:"extracted_lesson,omitempty"`

	// CreatedAt is when the correction was detected.
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates a correction event with a generated UUID.
func NewEvent(conversationID string, corrType Type, patternMatched string) (*Event, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}
	if !ValidType(corrType) {
		return nil, ErrInvalidType
	}

	return &Event{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Type:           corrType,
		PatternMatched: patternMatched,
		CreatedAt:      time.Now(),
	}, nil
}

// Detection is the result of a detection pass.
type Detection struct {
	// IsCorrection reports whether the message corrects the assistant.
	IsCorrection bool `json:"is_correction"`

	// Type is the detected correction type, valid only when IsCorrection.
	Type Type `json:"type,omitempty"`

	// Confidence is the detection confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// PatternMatched is the keyword that fired, or PatternAIDetected for
	// the deep pass.
	PatternMatched string `json:"pattern_matched,omitempty"`

	// OriginalValue and CorrectedValue are populated by the deep pass
	// when the model can extract them.
	OriginalValue  string `json:"original_value,omitempty"`
	CorrectedValue string `json:"corrected_value,omitempty"`

	// ExtractedLesson is a free-text lesson produced by the deep pass.
	ExtractedLesson string `json:"extracted_lesson,omitempty"`

	// Domain tags the subject area, when the deep pass can infer it.
	Domain string `json:"domain,omitempty"`
}
