package outcome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultQuickChangeWindow is how soon after tracking an outcome must
// arrive to count as a quick modification or deletion.
const DefaultQuickChangeWindow = 5 * time.Minute

// PatternLearner receives suspicious quick outcomes for pattern learning.
// Implemented by preference.Learner; defined here so the tracker does not
// depend on the preference package.
type PatternLearner interface {
	LearnFromOutcome(ctx context.Context, row *ActionOutcome) error
}

// Tracker records actions and their outcomes.
//
// Tracking is strictly best-effort: every failure is logged and swallowed
// so that recording telemetry about an action can never block or fail the
// action itself.
type Tracker struct {
	store       Store
	learner     PatternLearner
	quickWindow time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewTracker creates an action outcome tracker.
//
// learner may be nil, in which case quick changes are recorded but not
// converted into preference proposals. A non-positive quickWindow falls
// back to DefaultQuickChangeWindow.
func NewTracker(store Store, learner PatternLearner, quickWindow time.Duration, logger *zap.Logger) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("outcome store cannot be nil")
	}
	if quickWindow <= 0 {
		quickWindow = DefaultQuickChangeWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tracker{
		store:       store,
		learner:     learner,
		quickWindow: quickWindow,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// TrackAction records that an action was taken. A second call with the
// same action ID is a caller bug; it is logged and otherwise ignored.
func (t *Tracker) TrackAction(ctx context.Context, actionType, actionID, originalValue, conversationID, messageID string) {
	row, err := NewActionOutcome(actionType, actionID, originalValue)
	if err != nil {
		t.logger.Warn("refusing to track action", zap.String("action_id", actionID), zap.Error(err))
		return
	}
	row.ConversationID = conversationID
	row.MessageID = messageID
	row.CreatedAt = t.now()

	if err := t.store.CreateOutcome(ctx, row); err != nil {
		if errors.Is(err, ErrAlreadyTracked) {
			t.logger.Warn("action tracked twice", zap.String("action_id", actionID))
		} else {
			t.logger.Warn("failed to track action", zap.String("action_id", actionID), zap.Error(err))
		}
	}
}

// RecordOutcome records what happened to a tracked action.
//
// Untracked actions are a silent no-op: callers fire outcome events for
// every action, tracked or not. An outcome recorded within the quick
// window sets the derived quick-change flag and, for modifications and
// deletions, hands the row to the pattern learner.
func (t *Tracker) RecordOutcome(ctx context.Context, actionID string, outcomeType Type, modifiedValue string) {
	if !ValidType(outcomeType) {
		t.logger.Warn("ignoring invalid outcome type",
			zap.String("action_id", actionID),
			zap.String("outcome", string(outcomeType)))
		return
	}

	row, err := t.store.GetByActionID(ctx, actionID)
	if err != nil {
		if !errors.Is(err, ErrNotTracked) {
			t.logger.Warn("failed to load tracked action", zap.String("action_id", actionID), zap.Error(err))
		}
		return
	}

	if row.Outcome != TypeUnset {
		t.logger.Warn("outcome already recorded", zap.String("action_id", actionID))
		return
	}

	now := t.now()
	quick := now.Sub(row.CreatedAt) <= t.quickWindow

	row.Outcome = outcomeType
	row.ModifiedValue = modifiedValue
	row.RecordedAt = &now
	row.WasModifiedQuickly = quick && outcomeType == TypeModified
	row.WasDeletedQuickly = quick && outcomeType == TypeDeleted

	if err := t.store.UpdateOutcome(ctx, row); err != nil {
		t.logger.Warn("failed to record outcome", zap.String("action_id", actionID), zap.Error(err))
		return
	}

	if t.learner != nil && (row.WasModifiedQuickly || row.WasDeletedQuickly) {
		if err := t.learner.LearnFromOutcome(ctx, row); err != nil {
			t.logger.Warn("pattern learning failed for quick outcome",
				zap.String("action_id", actionID),
				zap.Error(err))
		}
	}
}

// RecordExplicitFeedback records a thumbs-up/thumbs-down on an action.
// Positive feedback confirms the action; negative feedback is recorded
// as a modification so the suspicious-outcome path can inspect it.
func (t *Tracker) RecordExplicitFeedback(ctx context.Context, actionID string, isPositive bool) {
	if isPositive {
		t.RecordOutcome(ctx, actionID, TypeConfirmed, "")
		return
	}
	t.RecordOutcome(ctx, actionID, TypeModified, "")
}
