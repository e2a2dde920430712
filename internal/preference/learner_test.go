package preference

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonlabs/learnd/internal/correction"
	"github.com/harmonlabs/learnd/internal/outcome"
)

// stubClassifier returns a canned response or error.
type stubClassifier struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (s *stubClassifier) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubClassifier) Available() bool { return true }

func newTestLearner(t *testing.T, classifier *stubClassifier) (*Learner, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	learner, err := NewLearner(store, classifier, 0, 0, nil)
	require.NoError(t, err)
	return learner, store
}

func correctionEvent(t *testing.T, original, corrected, lesson string) *correction.Event {
	t.Helper()
	event, err := correction.NewEvent("conv-1", correction.TypeExplicit, "incorrect")
	require.NoError(t, err)
	event.OriginalValue = original
	event.CorrectedValue = corrected
	event.ExtractedLesson = lesson
	return event
}

const imperialProposal = `{
	"category": "formatting",
	"preferenceKey": "unit_system",
	"preferenceValue": "imperial",
	"description": "User wants imperial units",
	"confidence": 0.6
}`

func TestLearnFromCorrection_CreatesPreference(t *testing.T) {
	classifier := &stubClassifier{response: imperialProposal}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	event := correctionEvent(t, "500 grams", "about a pound", "User prefers imperial units")
	require.NoError(t, learner.LearnFromCorrection(ctx, event))

	p, err := store.GetActive(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)
	assert.Equal(t, "imperial", p.Value)
	assert.Equal(t, 0.6, p.Confidence)
	assert.Equal(t, SourceCorrection, p.SourceType)
	assert.Equal(t, []string{event.ID}, p.SourceIDs)
	assert.Equal(t, StatusActive, p.Status)
	assert.Zero(t, p.ReinforcementCount)
}

func TestLearnFromCorrection_SameValueReinforces(t *testing.T) {
	// Agreeing evidence must reinforce the existing row, not create a
	// second one: same row, confidence non-decreasing, counter up.
	classifier := &stubClassifier{response: imperialProposal}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	first := correctionEvent(t, "500 grams", "about a pound", "User prefers imperial units")
	second := correctionEvent(t, "3 kilometers", "about 2 miles", "User prefers imperial units")
	require.NoError(t, learner.LearnFromCorrection(ctx, first))
	require.NoError(t, learner.LearnFromCorrection(ctx, second))

	rows, err := store.ListByKey(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	p := rows[0]
	assert.InDelta(t, 0.7, p.Confidence, 1e-9)
	assert.Equal(t, 1, p.ReinforcementCount)
	assert.Equal(t, []string{first.ID, second.ID}, p.SourceIDs)
}

func TestReinforcementCapsAtOne(t *testing.T) {
	classifier := &stubClassifier{response: imperialProposal}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		event := correctionEvent(t, "metric", "imperial", "User prefers imperial units")
		require.NoError(t, learner.LearnFromCorrection(ctx, event))
	}

	p, err := store.GetActive(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, 9, p.ReinforcementCount)
}

func TestLearnFromCorrection_ConflictingValueSupersedes(t *testing.T) {
	// A conflicting value retires the old row and installs a new active
	// one; the old row survives with the supersession link.
	classifier := &stubClassifier{response: imperialProposal}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	require.NoError(t, learner.LearnFromCorrection(ctx,
		correctionEvent(t, "500 grams", "about a pound", "User prefers imperial units")))

	classifier.response = `{
		"category": "formatting",
		"preferenceKey": "unit_system",
		"preferenceValue": "metric",
		"description": "User wants metric units",
		"confidence": 0.5
	}`
	require.NoError(t, learner.LearnFromCorrection(ctx,
		correctionEvent(t, "2 miles", "3 kilometers", "User prefers metric units")))

	active, err := store.GetActive(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)
	assert.Equal(t, "metric", active.Value)
	assert.Equal(t, 0.5, active.Confidence)

	rows, err := store.ListByKey(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var old *LearnedPreference
	for _, r := range rows {
		if r.Value == "imperial" {
			old = r
		}
	}
	require.NotNil(t, old)
	assert.Equal(t, StatusSuperseded, old.Status)
	assert.Equal(t, active.ID, old.SupersededBy)
}

func TestUpdateStaleCopyCannotResurrectSupersededRow(t *testing.T) {
	// Updating with a copy read before a concurrent supersession must
	// fail with ErrActiveConflict, never write back Status=active.
	store := NewInMemoryStore()
	ctx := context.Background()

	original, err := New(CategoryFormatting, "unit_system", "imperial", "", 0.6, SourceCorrection, "evt-1")
	require.NoError(t, err)
	require.NoError(t, store.CreateActive(ctx, original))

	stale, err := store.GetActive(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)

	replacement, err := New(CategoryFormatting, "unit_system", "metric", "", 0.5, SourceCorrection, "evt-2")
	require.NoError(t, err)
	require.NoError(t, store.Supersede(ctx, original.ID, replacement))

	stale.Reinforce(0.1, "evt-3")
	assert.ErrorIs(t, store.Update(ctx, stale), ErrActiveConflict)

	active, err := store.ListActive(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "metric", active[0].Value)
}

// racingStore supersedes the active row out from under the caller on the
// first read, simulating a concurrent writer winning the race between
// GetActive and Update.
type racingStore struct {
	*InMemoryStore
	raced bool
}

func (s *racingStore) GetActive(ctx context.Context, category Category, key string) (*LearnedPreference, error) {
	row, err := s.InMemoryStore.GetActive(ctx, category, key)
	if err != nil {
		return nil, err
	}
	if !s.raced {
		s.raced = true
		replacement, err := New(category, key, "metric", "", 0.5, SourceCorrection, "racer-evt")
		if err != nil {
			return nil, err
		}
		if err := s.InMemoryStore.Supersede(ctx, row.ID, replacement); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func TestLearnFromCorrection_ReinforceLostRaceRetries(t *testing.T) {
	// A reinforcement that loses the active-row race to a concurrent
	// supersession must retry from a fresh read, leaving exactly one
	// active row per key.
	store := &racingStore{InMemoryStore: NewInMemoryStore()}
	classifier := &stubClassifier{response: imperialProposal}
	learner, err := NewLearner(store, classifier, 0, 0, nil)
	require.NoError(t, err)
	ctx := context.Background()

	seeded, err := New(CategoryFormatting, "unit_system", "imperial", "", 0.6, SourceCorrection, "evt-0")
	require.NoError(t, err)
	require.NoError(t, store.CreateActive(ctx, seeded))

	event := correctionEvent(t, "500 grams", "about a pound", "User prefers imperial units")
	require.NoError(t, learner.LearnFromCorrection(ctx, event))

	active, err := store.ListActive(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "imperial", active[0].Value)

	rows, err := store.ListByKey(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestLearnFromCorrection_SkipsIncompleteEvents(t *testing.T) {
	// Without a before/after pair and a lesson there is nothing to
	// generalize; no model call is made.
	classifier := &stubClassifier{response: imperialProposal}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	event := correctionEvent(t, "", "about a pound", "User prefers imperial units")
	require.NoError(t, learner.LearnFromCorrection(ctx, event))

	assert.Zero(t, classifier.calls)
	rows, err := store.ListActive(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLearnFromCorrection_ClassifierFailureDropsEvidence(t *testing.T) {
	classifier := &stubClassifier{err: fmt.Errorf("model unreachable")}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	event := correctionEvent(t, "a", "b", "lesson")
	require.NoError(t, learner.LearnFromCorrection(ctx, event))

	rows, err := store.ListActive(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLearnFromCorrection_MalformedOutputDropsEvidence(t *testing.T) {
	// An unknown category must fail schema validation, not persist.
	classifier := &stubClassifier{response: `{"category": "vibes", "preferenceKey": "k", "preferenceValue": "v", "confidence": 0.5}`}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	require.NoError(t, learner.LearnFromCorrection(ctx, correctionEvent(t, "a", "b", "lesson")))

	rows, err := store.ListActive(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func quickModifiedRow(t *testing.T) *outcome.ActionOutcome {
	t.Helper()
	row, err := outcome.NewActionOutcome("reminder_set", "act-1", "9am")
	require.NoError(t, err)
	row.Outcome = outcome.TypeModified
	row.ModifiedValue = "8am"
	row.WasModifiedQuickly = true
	return row
}

func TestLearnFromOutcome_SeedsLowConfidence(t *testing.T) {
	classifier := &stubClassifier{response: `{
		"hasLearnablePattern": true,
		"category": "timing",
		"preferenceKey": "reminder_time",
		"preferenceValue": "8am",
		"description": "User moves morning reminders to 8am"
	}`}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	row := quickModifiedRow(t)
	require.NoError(t, learner.LearnFromOutcome(ctx, row))

	p, err := store.GetActive(ctx, CategoryTiming, "reminder_time")
	require.NoError(t, err)
	assert.Equal(t, "8am", p.Value)
	assert.Equal(t, DefaultOutcomeSeedConfidence, p.Confidence)
	assert.Equal(t, SourceOutcome, p.SourceType)
	assert.Equal(t, []string{row.ID}, p.SourceIDs)
}

func TestLearnFromOutcome_NoPatternLearnsNothing(t *testing.T) {
	classifier := &stubClassifier{response: `{"hasLearnablePattern": false}`}
	learner, store := newTestLearner(t, classifier)
	ctx := context.Background()

	require.NoError(t, learner.LearnFromOutcome(ctx, quickModifiedRow(t)))

	rows, err := store.ListActive(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLearnFromOutcome_ModificationWithoutValue(t *testing.T) {
	// Negative explicit feedback arrives as a modification with no
	// replacement value; the model prompt must not trail off with an
	// empty "changed it to:".
	classifier := &stubClassifier{response: `{"hasLearnablePattern": false}`}
	learner, _ := newTestLearner(t, classifier)
	ctx := context.Background()

	row := quickModifiedRow(t)
	row.ModifiedValue = ""
	require.NoError(t, learner.LearnFromOutcome(ctx, row))

	require.Equal(t, 1, classifier.calls)
	assert.Contains(t, classifier.lastUser, "the user modified it.")
	assert.NotContains(t, classifier.lastUser, "changed it to:")
}

func TestLearnFromOutcome_IgnoresSlowOutcomes(t *testing.T) {
	classifier := &stubClassifier{response: `{"hasLearnablePattern": true}`}
	learner, _ := newTestLearner(t, classifier)
	ctx := context.Background()

	row := quickModifiedRow(t)
	row.WasModifiedQuickly = false
	require.NoError(t, learner.LearnFromOutcome(ctx, row))

	assert.Zero(t, classifier.calls)
}
