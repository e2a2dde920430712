package correction

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harmonlabs/learnd/internal/classify"
)

const instrumentationName = "github.com/harmonlabs/learnd/internal/correction"

// Learner receives detected corrections that carry an extracted lesson.
// Implemented by preference.Learner; defined here so the detector does
// not depend on the preference package.
type Learner interface {
	LearnFromCorrection(ctx context.Context, event *Event) error
}

// Detector orchestrates correction detection for inbound conversation turns.
//
// Quick detection is free and runs on every call; deep detection costs a
// model call and runs only when quick detection (or the caller) already
// suspects a correction. A failing or slow model degrades detection
// quality, it never fails the caller.
type Detector struct {
	store      EventStore
	classifier classify.Client
	learner    Learner
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewDetector creates a correction detector.
//
// learner may be nil, in which case detected lessons are persisted but
// not converted into preferences.
func NewDetector(store EventStore, classifier classify.Client, learner Learner, logger *zap.Logger) (*Detector, error) {
	if store == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	if classifier == nil {
		classifier = classify.NoOpClient{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{
		store:      store,
		classifier: classifier,
		learner:    learner,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
	}, nil
}

// ProcessInput carries one conversation turn into detection.
type ProcessInput struct {
	ConversationID           string `json:"conversation_id"`
	UserMessage              string `json:"user_message"`
	PreviousAssistantMessage string `json:"previous_assistant_message,omitempty"`
	TriggerMessageID         string `json:"trigger_message_id,omitempty"`
	CorrectionMessageID      string `json:"correction_message_id,omitempty"`
}

// ProcessCorrectionEvent runs the two-tier detection pipeline for one turn.
//
// Returns (nil, nil) when the turn is not a correction: a negative quick
// pass stops before any model call, and a deep pass that disagrees with
// the quick pass also stops. A positive detection is persisted as an
// Event; when it carries an extracted lesson the learner is invoked.
//
// Persistence and learner failures on this path are logged and swallowed
// so that detection never aborts the hosting conversation turn.
func (d *Detector) ProcessCorrectionEvent(ctx context.Context, in ProcessInput) (*Event, error) {
	if in.ConversationID == "" {
		return nil, ErrEmptyConversationID
	}
	if in.UserMessage == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := d.tracer.Start(ctx, "correction.Process")
	defer span.End()

	quick := DetectQuick(in.UserMessage)
	if !quick.IsCorrection {
		span.SetAttributes(attribute.Bool("correction.detected", false))
		return nil, nil
	}

	final := d.detectDeep(ctx, in.UserMessage, in.PreviousAssistantMessage, quick)
	if !final.IsCorrection {
		// The deep pass vetoed the keyword match.
		span.SetAttributes(attribute.Bool("correction.detected", false))
		d.logger.Debug("deep detection vetoed quick match",
			zap.String("conversation_id", in.ConversationID),
			zap.String("pattern", quick.PatternMatched))
		return nil, nil
	}

	span.SetAttributes(
		attribute.Bool("correction.detected", true),
		attribute.String("correction.type", string(final.Type)),
		attribute.Float64("correction.confidence", final.Confidence),
	)

	event, err := NewEvent(in.ConversationID, final.Type, final.PatternMatched)
	if err != nil {
		return nil, err
	}
	event.TriggerMessageID = in.TriggerMessageID
	event.CorrectionMessageID = in.CorrectionMessageID
	event.OriginalValue = final.OriginalValue
	event.CorrectedValue = final.CorrectedValue
	event.ExtractedLesson = final.ExtractedLesson
	event.Domain = final.Domain

	if err := d.store.CreateEvent(ctx, event); err != nil {
		// The event log is advisory; losing one row must not abort the turn.
		d.logger.Warn("failed to persist correction event",
			zap.String("conversation_id", in.ConversationID),
			zap.Error(err))
	}

	if d.learner != nil && event.ExtractedLesson != "" {
		if err := d.learner.LearnFromCorrection(ctx, event); err != nil {
			d.logger.Warn("preference learning failed for correction",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	d.logger.Info("correction detected",
		zap.String("conversation_id", in.ConversationID),
		zap.String("type", string(final.Type)),
		zap.String("pattern", final.PatternMatched),
		zap.Float64("confidence", final.Confidence))

	return event, nil
}

// deepJudgment is the structured output requested from the classifier.
type deepJudgment struct {
	IsCorrection    bool    `json:"isCorrection"`
	CorrectionType  string  `json:"correctionType" validate:"required_if=IsCorrection true,omitempty,oneof=explicit implicit modification deletion retry"`
	Confidence      float64 `json:"confidence" validate:"gte=0,lte=1"`
	OriginalValue   string  `json:"originalValue"`
	CorrectedValue  string  `json:"correctedValue"`
	ExtractedLesson string  `json:"extractedLesson"`
	Domain          string  `json:"domain"`
}

// deepDetectionPrompt asks the model for a structured correction judgment.
const deepDetectionPrompt = `You are analyzing a conversation between a user and their personal assistant to decide whether the user's latest message corrects something the assistant did or said.

Respond with a JSON object containing:
- "isCorrection": whether the user is correcting the assistant (boolean)
- "correctionType": one of "explicit", "implicit", "modification", "deletion", "retry"
- "confidence": your confidence in this judgment (0.0 to 1.0)
- "originalValue": what the assistant originally did or said, if identifiable
- "correctedValue": what the user wanted instead, if identifiable
- "extractedLesson": a one-sentence durable lesson about the user's preferences, or "" if none
- "domain": the subject area (e.g. "calendar", "grocery", "task", "reminder"), or "" if unclear

Respond ONLY with the JSON object, no additional text.`

// detectDeep asks the classifier for a structured judgment and falls back
// to the quick result on any failure (network, timeout, malformed output).
func (d *Detector) detectDeep(ctx context.Context, userMessage, previousAssistantMessage string, quick Detection) Detection {
	if !d.classifier.Available() {
		return quick
	}

	user := fmt.Sprintf("Assistant's previous message:\n%s\n\nUser's message:\n%s",
		previousAssistantMessage, userMessage)

	raw, err := d.classifier.Complete(ctx, deepDetectionPrompt, user)
	if err != nil {
		d.logger.Warn("deep detection unavailable, using quick result", zap.Error(err))
		return quick
	}

	var judgment deepJudgment
	if err := classify.DecodeStrict(raw, &judgment); err != nil {
		d.logger.Warn("deep detection returned invalid output, using quick result", zap.Error(err))
		return quick
	}

	if !judgment.IsCorrection {
		return Detection{}
	}

	return Detection{
		IsCorrection:    true,
		Type:            Type(judgment.CorrectionType),
		Confidence:      judgment.Confidence,
		PatternMatched:  PatternAIDetected,
		OriginalValue:   judgment.OriginalValue,
		CorrectedValue:  judgment.CorrectedValue,
		ExtractedLesson: judgment.ExtractedLesson,
		Domain:          judgment.Domain,
	}
}
