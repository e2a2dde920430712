package expectation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/google/uuid"
)

const instrumentationName = "github.com/harmonlabs/learnd/internal/expectation"

// DefaultExpiryAge is how long past DueBy a pending expectation may sit
// before the sweep expires it.
const DefaultExpiryAge = 48 * time.Hour

// Calibrator manages the expectation lifecycle and the calibration score.
type Calibrator struct {
	store  Store
	sink   FindingSink
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewCalibrator creates an expectation calibrator.
//
// sink may be nil, in which case contradictions are logged but no
// finding is emitted.
func NewCalibrator(store Store, sink FindingSink, logger *zap.Logger) (*Calibrator, error) {
	if store == nil {
		return nil, fmt.Errorf("expectation store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Calibrator{
		store:  store,
		sink:   sink,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		now:    time.Now,
	}, nil
}

// Create records a new pending expectation.
func (c *Calibrator) Create(ctx context.Context, subject Subject, expected Expected, because Because, contextTags map[string]string, dueBy time.Time) (*Expectation, error) {
	e, err := New(subject, expected, because, contextTags, dueBy)
	if err != nil {
		return nil, err
	}
	if err := c.store.CreateExpectation(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create expectation: %w", err)
	}

	c.logger.Info("expectation created",
		zap.String("id", e.ID),
		zap.String("subject", string(subject)),
		zap.Float64("value", expected.Value),
		zap.String("comparator", string(expected.Comparator)),
		zap.Time("due_by", dueBy))
	return e, nil
}

// Evaluate scores a pending expectation against an observed value.
//
// Evaluation is one-shot: an already-evaluated or expired row is rejected
// with ErrNotPending, an unknown id with ErrNotFound. Both indicate
// caller bugs, not recoverable conditions. When the prediction is wrong a
// ContradictionFinding is emitted to the sink.
func (c *Calibrator) Evaluate(ctx context.Context, id string, observedValue float64, signalIDs []string) (*Expectation, error) {
	ctx, span := c.tracer.Start(ctx, "expectation.Evaluate")
	defer span.End()

	e, err := c.store.GetExpectation(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, id, e.Status)
	}

	now := c.now()
	correct := e.Expected.Satisfies(observedValue)

	e.ObservedValue = &observedValue
	e.WasCorrect = &correct
	e.EvaluatedAt = &now
	e.Status = StatusEvaluated

	if err := c.store.UpdateExpectation(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to persist evaluation: %w", err)
	}

	span.SetAttributes(
		attribute.String("expectation.subject", string(e.Subject)),
		attribute.Bool("expectation.correct", correct),
	)

	c.logger.Info("expectation evaluated",
		zap.String("id", e.ID),
		zap.String("subject", string(e.Subject)),
		zap.Float64("observed", observedValue),
		zap.Bool("correct", correct))

	if !correct {
		c.emitContradiction(ctx, e, observedValue, signalIDs)
	}
	return e, nil
}

// emitContradiction synthesizes and delivers a finding for a wrong
// prediction. Sink failures are logged; the evaluation itself already
// succeeded and is not rolled back.
func (c *Calibrator) emitContradiction(ctx context.Context, e *Expectation, observed float64, signalIDs []string) {
	if c.sink == nil {
		c.logger.Warn("contradiction detected but no finding sink configured",
			zap.String("expectation_id", e.ID))
		return
	}

	if len(signalIDs) > MaxEvidenceSignals {
		signalIDs = signalIDs[:MaxEvidenceSignals]
	}

	f := &ContradictionFinding{
		ID:        uuid.New().String(),
		Subject:   string(e.Subject),
		Predicate: "contradicts",
		Object:    fmt.Sprintf("expected %s %.1f", e.Expected.Comparator, e.Expected.Value),
		Rationale: e.Because.Rationale,
		Stats: FindingStats{
			Expected: e.Expected,
			Observed: observed,
		},
		Strength: ContradictionStrength,
		Evidence: FindingEvidence{
			ExpectationID: e.ID,
			SignalIDs:     append([]string(nil), signalIDs...),
		},
		CreatedAt: c.now(),
	}

	if err := c.sink.EmitFinding(ctx, f); err != nil {
		c.logger.Warn("failed to emit contradiction finding",
			zap.String("expectation_id", e.ID),
			zap.Error(err))
		return
	}

	c.logger.Info("contradiction finding emitted",
		zap.String("expectation_id", e.ID),
		zap.String("subject", f.Subject),
		zap.Float64("expected", e.Expected.Value),
		zap.Float64("observed", observed))
}

// GetPending returns pending expectations, optionally filtered by subject
// (empty subject means all).
func (c *Calibrator) GetPending(ctx context.Context, subject Subject) ([]*Expectation, error) {
	if subject != "" && !ValidSubject(subject) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
	}
	return c.store.ListByStatus(ctx, StatusPending, subject)
}

// GetOverdue returns pending expectations whose deadline has passed.
func (c *Calibrator) GetOverdue(ctx context.Context) ([]*Expectation, error) {
	return c.store.ListOverdue(ctx, c.now())
}

// ExpireOld transitions pending expectations overdue by more than age to
// expired and returns the count affected. This is the only exit from
// pending without an observation; it keeps stale predictions out of the
// calibration score. A non-positive age falls back to DefaultExpiryAge.
func (c *Calibrator) ExpireOld(ctx context.Context, age time.Duration) (int, error) {
	if age <= 0 {
		age = DefaultExpiryAge
	}

	cutoff := c.now().Add(-age)
	rows, err := c.store.ListOverdue(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue expectations: %w", err)
	}

	expired := 0
	for _, e := range rows {
		e.Status = StatusExpired
		if err := c.store.UpdateExpectation(ctx, e); err != nil {
			return expired, fmt.Errorf("failed to expire expectation %s: %w", e.ID, err)
		}
		expired++
	}

	if expired > 0 {
		c.logger.Info("expired stale expectations", zap.Int("count", expired))
	}
	return expired, nil
}

// Score computes the calibration score over evaluated expectations.
// Expired rows never enter the denominator.
func (c *Calibrator) Score(ctx context.Context) (CalibrationScore, error) {
	rows, err := c.store.ListByStatus(ctx, StatusEvaluated, "")
	if err != nil {
		return CalibrationScore{}, fmt.Errorf("failed to list evaluated expectations: %w", err)
	}

	score := CalibrationScore{Total: len(rows)}
	for _, e := range rows {
		if e.WasCorrect != nil && *e.WasCorrect {
			score.Correct++
		}
	}
	if score.Total > 0 {
		score.Score = float64(score.Correct) / float64(score.Total)
	}
	return score, nil
}
