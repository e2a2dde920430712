package preference

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harmonlabs/learnd/internal/classify"
	"github.com/harmonlabs/learnd/internal/correction"
	"github.com/harmonlabs/learnd/internal/outcome"
)

const instrumentationName = "github.com/harmonlabs/learnd/internal/preference"

// Defaults for the learning knobs.
const (
	// DefaultReinforcementStep is how much agreeing evidence raises
	// confidence.
	DefaultReinforcementStep = 0.1

	// DefaultOutcomeSeedConfidence is the starting confidence for
	// preferences inferred from quick outcomes. Inferred patterns start
	// well below stated corrections.
	DefaultOutcomeSeedConfidence = 0.4

	// applyAttempts bounds the read-then-write retry loop when a
	// concurrent writer wins the active-row race.
	applyAttempts = 3
)

// Learner converts correction events and suspicious outcomes into learned
// preferences via the reinforce-or-supersede lifecycle.
//
// Structuring evidence into a (category, key, value) proposal requires a
// model call; when the classifier is unavailable or returns garbage the
// evidence is dropped and nothing is learned. Preference mutations that
// fail to persist are surfaced, not swallowed.
type Learner struct {
	store      Store
	classifier classify.Client
	step       float64
	seed       float64
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewLearner creates a preference learner.
//
// Non-positive step or seed fall back to the defaults.
func NewLearner(store Store, classifier classify.Client, step, seed float64, logger *zap.Logger) (*Learner, error) {
	if store == nil {
		return nil, fmt.Errorf("preference store cannot be nil")
	}
	if classifier == nil {
		classifier = classify.NoOpClient{}
	}
	if step <= 0 {
		step = DefaultReinforcementStep
	}
	if seed <= 0 {
		seed = DefaultOutcomeSeedConfidence
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Learner{
		store:      store,
		classifier: classifier,
		step:       step,
		seed:       seed,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
	}, nil
}

// proposal is the structured preference extraction requested from the
// classifier on the correction path.
type proposal struct {
	Category    string  `json:"category" validate:"required,oneof=timing communication task_defaults calendar_defaults disambiguation formatting priority workflow"`
	Key         string  `json:"preferenceKey" validate:"required"`
	Value       string  `json:"preferenceValue" validate:"required"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
}

const correctionExtractionPrompt = `You are extracting a durable user preference from a correction the user made to their personal assistant.

Respond with a JSON object containing:
- "category": one of "timing", "communication", "task_defaults", "calendar_defaults", "disambiguation", "formatting", "priority", "workflow"
- "preferenceKey": a short snake_case identifier for the preference (e.g. "unit_system", "reminder_lead_time")
- "preferenceValue": the preferred value, as the user would state it
- "description": one sentence describing the preference
- "confidence": how confident you are this is a durable preference rather than a one-off request (0.0 to 1.0)

Respond ONLY with the JSON object, no additional text.`

// LearnFromCorrection turns a detected correction into a preference.
//
// Corrections without both an original and corrected value carry no
// before/after pair to generalize from; they are skipped. A classifier
// failure drops the evidence with a log line. Store failures are returned.
func (l *Learner) LearnFromCorrection(ctx context.Context, event *correction.Event) error {
	if event == nil {
		return fmt.Errorf("correction event cannot be nil")
	}
	if event.OriginalValue == "" || event.CorrectedValue == "" || event.ExtractedLesson == "" {
		l.logger.Debug("correction carries no learnable lesson", zap.String("event_id", event.ID))
		return nil
	}
	if !l.classifier.Available() {
		l.logger.Debug("classifier unavailable, dropping correction evidence",
			zap.String("event_id", event.ID))
		return nil
	}

	ctx, span := l.tracer.Start(ctx, "preference.LearnFromCorrection")
	defer span.End()

	user := fmt.Sprintf("Correction type: %s\nDomain: %s\nAssistant originally: %s\nUser wanted: %s\nLesson: %s",
		event.Type, event.Domain, event.OriginalValue, event.CorrectedValue, event.ExtractedLesson)

	raw, err := l.classifier.Complete(ctx, correctionExtractionPrompt, user)
	if err != nil {
		l.logger.Warn("preference extraction unavailable, dropping correction evidence",
			zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	var prop proposal
	if err := classify.DecodeStrict(raw, &prop); err != nil {
		l.logger.Warn("preference extraction returned invalid output, dropping correction evidence",
			zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	p, err := l.apply(ctx, prop, SourceCorrection, event.ID, prop.Confidence)
	if err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("preference.category", string(p.Category)),
		attribute.String("preference.key", p.Key),
	)
	return nil
}

// outcomeJudgment is the structured output requested from the classifier
// on the suspicious-outcome path.
type outcomeJudgment struct {
	HasLearnablePattern bool   `json:"hasLearnablePattern"`
	Category            string `json:"category" validate:"required_if=HasLearnablePattern true,omitempty,oneof=timing communication task_defaults calendar_defaults disambiguation formatting priority workflow"`
	Key                 string `json:"preferenceKey" validate:"required_if=HasLearnablePattern true"`
	Value               string `json:"preferenceValue" validate:"required_if=HasLearnablePattern true"`
	Description         string `json:"description"`
}

const outcomeExtractionPrompt = `You are deciding whether a user's quick modification or deletion of an assistant action reveals a durable preference, or was just a one-off change of mind.

Respond with a JSON object containing:
- "hasLearnablePattern": whether a durable preference can be inferred (boolean)
- "category": one of "timing", "communication", "task_defaults", "calendar_defaults", "disambiguation", "formatting", "priority", "workflow"
- "preferenceKey": a short snake_case identifier for the preference
- "preferenceValue": the preferred value implied by the user's change
- "description": one sentence describing the preference

If hasLearnablePattern is false, the other fields may be empty.
Respond ONLY with the JSON object, no additional text.`

// LearnFromOutcome inspects a quick modification or deletion for an
// inferable preference. Inferred preferences seed at low confidence;
// repetition raises them through the normal reinforcement path.
func (l *Learner) LearnFromOutcome(ctx context.Context, row *outcome.ActionOutcome) error {
	if row == nil {
		return fmt.Errorf("outcome row cannot be nil")
	}
	if !row.WasModifiedQuickly && !row.WasDeletedQuickly {
		return nil
	}
	if !l.classifier.Available() {
		l.logger.Debug("classifier unavailable, dropping outcome evidence",
			zap.String("action_id", row.ActionID))
		return nil
	}

	ctx, span := l.tracer.Start(ctx, "preference.LearnFromOutcome")
	defer span.End()

	change := "deleted it"
	if row.Outcome == outcome.TypeModified {
		// Explicit negative feedback records a modification without a
		// replacement value.
		change = "modified it"
		if row.ModifiedValue != "" {
			change = fmt.Sprintf("changed it to: %s", row.ModifiedValue)
		}
	}
	user := fmt.Sprintf("Action type: %s\nAssistant produced: %s\nWithin minutes the user %s.",
		row.ActionType, row.OriginalValue, change)

	raw, err := l.classifier.Complete(ctx, outcomeExtractionPrompt, user)
	if err != nil {
		l.logger.Warn("pattern extraction unavailable, dropping outcome evidence",
			zap.String("action_id", row.ActionID), zap.Error(err))
		return nil
	}

	var judgment outcomeJudgment
	if err := classify.DecodeStrict(raw, &judgment); err != nil {
		l.logger.Warn("pattern extraction returned invalid output, dropping outcome evidence",
			zap.String("action_id", row.ActionID), zap.Error(err))
		return nil
	}
	if !judgment.HasLearnablePattern {
		span.SetAttributes(attribute.Bool("preference.learned", false))
		return nil
	}

	prop := proposal{
		Category:    judgment.Category,
		Key:         judgment.Key,
		Value:       judgment.Value,
		Description: judgment.Description,
	}
	p, err := l.apply(ctx, prop, SourceOutcome, row.ID, l.seed)
	if err != nil {
		return err
	}

	span.SetAttributes(
		attribute.Bool("preference.learned", true),
		attribute.String("preference.category", string(p.Category)),
		attribute.String("preference.key", p.Key),
	)
	return nil
}

// apply runs the reinforce-or-supersede lifecycle for one proposal.
//
// The store enforces single-active-per-key; losing a race surfaces as
// ErrActiveConflict and the read-then-write is retried from the top.
func (l *Learner) apply(ctx context.Context, prop proposal, sourceType SourceType, sourceID string, confidence float64) (*LearnedPreference, error) {
	category := Category(prop.Category)

	var lastErr error
	for attempt := 0; attempt < applyAttempts; attempt++ {
		existing, err := l.store.GetActive(ctx, category, prop.Key)
		switch {
		case errors.Is(err, ErrPreferenceNotFound):
			p, err := New(category, prop.Key, prop.Value, prop.Description, confidence, sourceType, sourceID)
			if err != nil {
				return nil, err
			}
			if err := l.store.CreateActive(ctx, p); err != nil {
				if errors.Is(err, ErrActiveConflict) {
					lastErr = err
					continue
				}
				return nil, fmt.Errorf("failed to create preference: %w", err)
			}
			l.logger.Info("learned new preference",
				zap.String("category", string(category)),
				zap.String("key", prop.Key),
				zap.String("value", prop.Value),
				zap.Float64("confidence", p.Confidence))
			return p, nil

		case err != nil:
			return nil, fmt.Errorf("failed to load active preference: %w", err)
		}

		if existing.Value == prop.Value {
			existing.Reinforce(l.step, sourceID)
			if err := l.store.Update(ctx, existing); err != nil {
				if errors.Is(err, ErrActiveConflict) {
					lastErr = err
					continue
				}
				return nil, fmt.Errorf("failed to reinforce preference: %w", err)
			}
			l.logger.Info("reinforced preference",
				zap.String("category", string(category)),
				zap.String("key", prop.Key),
				zap.Float64("confidence", existing.Confidence),
				zap.Int("reinforcements", existing.ReinforcementCount))
			return existing, nil
		}

		replacement, err := New(category, prop.Key, prop.Value, prop.Description, confidence, sourceType, sourceID)
		if err != nil {
			return nil, err
		}
		if err := l.store.Supersede(ctx, existing.ID, replacement); err != nil {
			if errors.Is(err, ErrActiveConflict) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to supersede preference: %w", err)
		}
		l.logger.Info("superseded preference",
			zap.String("category", string(category)),
			zap.String("key", prop.Key),
			zap.String("old_value", existing.Value),
			zap.String("new_value", prop.Value))
		return replacement, nil
	}

	return nil, fmt.Errorf("lost active-preference race %d times: %w", applyAttempts, lastErr)
}

var (
	_ correction.Learner     = (*Learner)(nil)
	_ outcome.PatternLearner = (*Learner)(nil)
)
