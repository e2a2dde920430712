package preference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPreference(t *testing.T, store *InMemoryStore, category Category, key, value string, confidence float64) *LearnedPreference {
	t.Helper()
	p, err := New(category, key, value, "", confidence, SourceCorrection, "src-1")
	require.NoError(t, err)
	require.NoError(t, store.CreateActive(context.Background(), p))
	return p
}

func newQueryLearner(t *testing.T) (*Learner, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	learner, err := NewLearner(store, nil, 0, 0, nil)
	require.NoError(t, err)
	return learner, store
}

func TestGetForContext_FiltersByCategoryAndConfidence(t *testing.T) {
	learner, store := newQueryLearner(t)
	ctx := context.Background()

	seedPreference(t, store, CategoryTiming, "reminder_lead", "30m", 0.8)
	seedPreference(t, store, CategoryTiming, "meeting_buffer", "10m", 0.2)
	seedPreference(t, store, CategoryFormatting, "unit_system", "imperial", 0.9)

	prefs, err := learner.GetForContext(ctx, []Category{CategoryTiming}, 0.5)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "reminder_lead", prefs[0].Key)
}

func TestGetForContext_EmptyCategoriesMeansAll(t *testing.T) {
	learner, store := newQueryLearner(t)
	ctx := context.Background()

	seedPreference(t, store, CategoryTiming, "reminder_lead", "30m", 0.8)
	seedPreference(t, store, CategoryFormatting, "unit_system", "imperial", 0.9)

	prefs, err := learner.GetForContext(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, prefs, 2)
}

func TestGetForContext_RejectsUnknownCategory(t *testing.T) {
	learner, _ := newQueryLearner(t)

	_, err := learner.GetForContext(context.Background(), []Category{"vibes"}, 0)
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestGetValue(t *testing.T) {
	learner, store := newQueryLearner(t)
	ctx := context.Background()

	seedPreference(t, store, CategoryFormatting, "unit_system", "imperial", 0.9)

	p, err := learner.GetValue(ctx, CategoryFormatting, "unit_system", 0.5)
	require.NoError(t, err)
	assert.Equal(t, "imperial", p.Value)

	// A row below the confidence floor is treated as absent.
	_, err = learner.GetValue(ctx, CategoryFormatting, "unit_system", 0.95)
	assert.ErrorIs(t, err, ErrPreferenceNotFound)

	_, err = learner.GetValue(ctx, CategoryFormatting, "missing", 0)
	assert.ErrorIs(t, err, ErrPreferenceNotFound)
}

func TestHistory_IncludesSupersededRows(t *testing.T) {
	learner, store := newQueryLearner(t)
	ctx := context.Background()

	old := seedPreference(t, store, CategoryFormatting, "unit_system", "metric", 0.5)
	replacement, err := New(CategoryFormatting, "unit_system", "imperial", "", 0.6, SourceCorrection, "src-2")
	require.NoError(t, err)
	require.NoError(t, store.Supersede(ctx, old.ID, replacement))

	rows, err := learner.History(ctx, CategoryFormatting, "unit_system")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestFormatForPrompt(t *testing.T) {
	learner, store := newQueryLearner(t)
	ctx := context.Background()

	seedPreference(t, store, CategoryTiming, "reminder_lead", "30m", 0.8)
	seedPreference(t, store, CategoryFormatting, "unit_system", "imperial", 0.9)
	seedPreference(t, store, CategoryTiming, "meeting_buffer", "10m", 0.1) // below threshold

	out, err := learner.FormatForPrompt(ctx, nil, 0.3)
	require.NoError(t, err)
	assert.Contains(t, out, "[timing]")
	assert.Contains(t, out, "[formatting]")
	assert.Contains(t, out, "reminder_lead: 30m")
	assert.Contains(t, out, "unit_system: imperial")
	assert.NotContains(t, out, "meeting_buffer")

	onlyTiming, err := learner.FormatForPrompt(ctx, []Category{CategoryTiming}, 0.3)
	require.NoError(t, err)
	assert.Contains(t, onlyTiming, "reminder_lead")
	assert.NotContains(t, onlyTiming, "unit_system")
}

func TestFormatForPrompt_EmptyWhenNothingQualifies(t *testing.T) {
	// Callers splice the result into prompts unconditionally, so an
	// empty store must render as the empty string, not a bare header.
	learner, _ := newQueryLearner(t)

	out, err := learner.FormatForPrompt(context.Background(), nil, 0.3)
	require.NoError(t, err)
	assert.Empty(t, out)
}
