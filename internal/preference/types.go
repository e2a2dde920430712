// Package preference turns detected corrections and suspicious action
// outcomes into durable, versioned learned preferences. Preferences are
// keyed by (category, key); new evidence either reinforces the active
// value or supersedes it, never silently overwrites it.
package preference

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for preference operations.
var (
	ErrPreferenceNotFound = errors.New("preference not found")
	ErrActiveConflict     = errors.New("active preference already exists for key")
	ErrInvalidCategory    = errors.New("invalid preference category")
	ErrEmptyKey           = errors.New("preference key cannot be empty")
	ErrEmptyValue         = errors.New("preference value cannot be empty")
	ErrInvalidConfidence  = errors.New("confidence must be between 0.0 and 1.0")
)

// Category is the closed set of preference categories.
type Category string

const (
	CategoryTiming           Category = "timing"
	CategoryCommunication    Category = "communication"
	CategoryTaskDefaults     Category = "task_defaults"
	CategoryCalendarDefaults Category = "calendar_defaults"
	CategoryDisambiguation   Category = "disambiguation"
	CategoryFormatting       Category = "formatting"
	CategoryPriority         Category = "priority"
	CategoryWorkflow         Category = "workflow"
)

// Categories lists every valid category, in display order.
func Categories() []Category {
	return []Category{
		CategoryTiming,
		CategoryCommunication,
		CategoryTaskDefaults,
		CategoryCalendarDefaults,
		CategoryDisambiguation,
		CategoryFormatting,
		CategoryPriority,
		CategoryWorkflow,
	}
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryTiming, CategoryCommunication, CategoryTaskDefaults,
		CategoryCalendarDefaults, CategoryDisambiguation, CategoryFormatting,
		CategoryPriority, CategoryWorkflow:
		return true
	}
	return false
}

// SourceType records what kind of evidence produced a preference.
type SourceType string

const (
	// SourceCorrection means the user stated the correction directly.
	SourceCorrection SourceType = "correction"

	// SourceOutcome means the preference was inferred from a quick
	// modification or deletion of an assistant action.
	SourceOutcome SourceType = "outcome"
)

// Status is the lifecycle state of a preference row.
type Status string

const (
	// StatusActive marks the single live row for a (category, key).
	StatusActive Status = "active"

	// StatusSuperseded marks a retained historical row whose value was
	// replaced. SupersededBy links to the replacement.
	StatusSuperseded Status = "superseded"
)

// LearnedPreference is one versioned (category, key) -> value fact with
// confidence. Rows are never deleted: reinforcement mutates confidence in
// place, supersession creates a new row and retires the old one.
type LearnedPreference struct {
	// ID is the unique row identifier (UUID).
	ID string `json:"id"`

	// Category and Key identify the preference.
	Category Category `json:"category"`
	Key      string   `json:"key"`

	// Value is the preferred value, free text.
	Value string `json:"value"`

	// Description explains the preference in a sentence.
	Description string `json:"description,omitempty"`

	// Confidence is a score from 0.0 to 1.0. New corrections start low;
	// agreement raises it, capped at 1.0.
	Confidence float64 `json:"confidence"`

	// SourceType records the kind of evidence behind this preference.
	SourceType SourceType `json:"source_type"`

	// SourceIDs lists the correction events / outcome rows that produced
	// or reinforced this preference.
	SourceIDs []string `json:"source_ids"`

	// ReinforcementCount is how many times agreeing evidence arrived.
	ReinforcementCount int `json:"reinforcement_count"`

	// Status is active or superseded.
	Status Status `json:"status"`

	// SupersededBy is the ID of the replacing row, empty while active.
	SupersededBy string `json:"superseded_by,omitempty"`

	// CreatedAt is when this row was created; UpdatedAt moves on
	// reinforcement and supersession.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an active preference row with a generated UUID.
func New(category Category, key, value, description string, confidence float64, sourceType SourceType, sourceID string) (*LearnedPreference, error) {
	if !ValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if value == "" {
		return nil, ErrEmptyValue
	}
	if confidence < 0.0 || confidence > 1.0 {
		return nil, ErrInvalidConfidence
	}

	now := time.Now()
	p := &LearnedPreference{
		ID:          uuid.New().String(),
		Category:    category,
		Key:         key,
		Value:       value,
		Description: description,
		Confidence:  confidence,
		SourceType:  sourceType,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sourceID != "" {
		p.SourceIDs = []string{sourceID}
	}
	return p, nil
}

// Reinforce applies agreeing evidence: confidence rises by step (capped
// at 1.0), the reinforcement counter increments, and the source id is
// appended. Confidence is monotonic under reinforcement.
func (p *LearnedPreference) Reinforce(step float64, sourceID string) {
	p.Confidence += step
	if p.Confidence > 1.0 {
		p.Confidence = 1.0
	}
	p.ReinforcementCount++
	if sourceID != "" {
		p.SourceIDs = append(p.SourceIDs, sourceID)
	}
	p.UpdatedAt = time.Now()
}
