// Package expectation stores explicit, falsifiable predictions made by
// the assistant, scores them against later observations, and emits
// contradiction findings when a prediction turns out wrong. The fraction
// of correct evaluations is the calibration score.
package expectation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for expectation operations.
var (
	ErrNotFound          = errors.New("expectation not found")
	ErrNotPending        = errors.New("expectation is not pending")
	ErrInvalidSubject    = errors.New("invalid expectation subject")
	ErrInvalidComparator = errors.New("invalid comparator")
	ErrInvalidWindow     = errors.New("window hours must be positive")
)

// Subject is the closed set of things an expectation can predict.
type Subject string

const (
	SubjectEnergy       Subject = "energy"
	SubjectMood         Subject = "mood"
	SubjectProductivity Subject = "productivity"
	SubjectStress       Subject = "stress"
)

// ValidSubject reports whether s is a known subject.
func ValidSubject(s Subject) bool {
	switch s {
	case SubjectEnergy, SubjectMood, SubjectProductivity, SubjectStress:
		return true
	}
	return false
}

// Comparator relates an observed value to the predicted one.
type Comparator string

const (
	// ComparatorGTE predicts the observation will be at least the value.
	ComparatorGTE Comparator = ">="

	// ComparatorLTE predicts the observation will be at most the value.
	ComparatorLTE Comparator = "<="

	// ComparatorApprox predicts the observation will land within
	// ApproxTolerance of the value.
	ComparatorApprox Comparator = "~"
)

// ApproxTolerance is the half-width of the ComparatorApprox band.
const ApproxTolerance = 0.5

// ValidComparator reports whether c is a known comparator.
func ValidComparator(c Comparator) bool {
	switch c {
	case ComparatorGTE, ComparatorLTE, ComparatorApprox:
		return true
	}
	return false
}

// Status is the lifecycle state of an expectation.
type Status string

const (
	// StatusPending means no observation has arrived yet.
	StatusPending Status = "pending"

	// StatusEvaluated is terminal: an observation arrived and correctness
	// was recorded. Set exactly once.
	StatusEvaluated Status = "evaluated"

	// StatusExpired is terminal: the deadline passed with no observation.
	// Expired rows never enter the calibration score.
	StatusExpired Status = "expired"
)

// Expected is the prediction itself.
type Expected struct {
	// Value is the predicted quantity.
	Value float64 `json:"value"`

	// Comparator relates the observation to Value.
	Comparator Comparator `json:"comparator"`

	// WindowHours is how long the prediction is supposed to hold.
	WindowHours int `json:"window_hours"`
}

// Because records why the prediction was made.
type Because struct {
	// FindingID links to the insight that motivated the prediction, if any.
	FindingID string `json:"finding_id,omitempty"`

	// Rationale is a free-text justification.
	Rationale string `json:"rationale"`
}

// Expectation is one falsifiable prediction and, once scored, its result.
type Expectation struct {
	// ID is the unique row identifier (UUID).
	ID string `json:"id"`

	// Subject is what the prediction is about.
	Subject Subject `json:"subject"`

	// Expected is the prediction.
	Expected Expected `json:"expected"`

	// Because records the motivation for the prediction.
	Because Because `json:"because"`

	// Context carries free-form situational tags ("day": "monday", ...).
	Context map[string]string `json:"context,omitempty"`

	// DueBy is the deadline for an observation to arrive.
	DueBy time.Time `json:"due_by"`

	// Status is pending, evaluated, or expired.
	Status Status `json:"status"`

	// ObservedValue, WasCorrect, and EvaluatedAt are set exactly once,
	// when the expectation is evaluated.
	ObservedValue *float64   `json:"observed_value,omitempty"`
	WasCorrect    *bool      `json:"was_correct,omitempty"`
	EvaluatedAt   *time.Time `json:"evaluated_at,omitempty"`

	// CreatedAt is when the prediction was made.
	CreatedAt time.Time `json:"created_at"`
}

// New creates a pending expectation with a generated UUID.
func New(subject Subject, expected Expected, because Because, context map[string]string, dueBy time.Time) (*Expectation, error) {
	if !ValidSubject(subject) {
		return nil, ErrInvalidSubject
	}
	if !ValidComparator(expected.Comparator) {
		return nil, ErrInvalidComparator
	}
	if expected.WindowHours <= 0 {
		return nil, ErrInvalidWindow
	}

	return &Expectation{
		ID:        uuid.New().String(),
		Subject:   subject,
		Expected:  expected,
		Because:   because,
		Context:   context,
		DueBy:     dueBy,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// Satisfies reports whether the observed value makes the prediction correct.
func (e Expected) Satisfies(observed float64) bool {
	switch e.Comparator {
	case ComparatorGTE:
		return observed >= e.Value
	case ComparatorLTE:
		return observed <= e.Value
	case ComparatorApprox:
		diff := observed - e.Value
		if diff < 0 {
			diff = -diff
		}
		return diff <= ApproxTolerance
	}
	return false
}

// MaxEvidenceSignals caps the signal ids carried by a finding.
const MaxEvidenceSignals = 50

// ContradictionStrength is the fixed strength of contradiction findings.
// Contradictions are always high-salience.
const ContradictionStrength = 1.0

// FindingStats captures the expected-versus-observed mismatch.
type FindingStats struct {
	Expected Expected `json:"expected"`
	Observed float64  `json:"observed"`
}

// FindingEvidence links a finding back to its sources.
type FindingEvidence struct {
	// ExpectationID is the expectation that was contradicted.
	ExpectationID string `json:"expectation_id"`

	// SignalIDs lists contributing observation signals, at most
	// MaxEvidenceSignals of them.
	SignalIDs []string `json:"signal_ids,omitempty"`
}

// ContradictionFinding is emitted when an expectation evaluates incorrect.
type ContradictionFinding struct {
	// ID is the unique finding identifier (UUID).
	ID string `json:"id"`

	// Subject, Predicate, Object form the finding triple, e.g.
	// ("energy", "contradicts", "expected >= 7.0").
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`

	// Rationale is carried over from the expectation.
	Rationale string `json:"rationale,omitempty"`

	// Stats holds the expected-versus-observed values.
	Stats FindingStats `json:"stats"`

	// Strength is always ContradictionStrength.
	Strength float64 `json:"strength"`

	// Evidence links back to the expectation and its signals.
	Evidence FindingEvidence `json:"evidence"`

	// CreatedAt is when the finding was emitted.
	CreatedAt time.Time `json:"created_at"`
}

// CalibrationScore is the aggregate accuracy over evaluated expectations.
type CalibrationScore struct {
	// Score is Correct / Total, 0 when Total is 0.
	Score float64 `json:"score"`

	// Total counts evaluated expectations. Expired rows are excluded.
	Total int `json:"total"`

	// Correct counts evaluated expectations that were correct.
	Correct int `json:"correct"`
}
