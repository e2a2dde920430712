package expectation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalibrator(t *testing.T) (*Calibrator, *InMemoryStore, *InMemoryFindingSink) {
	t.Helper()
	store := NewInMemoryStore()
	sink := NewInMemoryFindingSink()
	cal, err := NewCalibrator(store, sink, nil)
	require.NoError(t, err)
	return cal, store, sink
}

func createEnergyExpectation(t *testing.T, cal *Calibrator, value float64, comparator Comparator) *Expectation {
	t.Helper()
	e, err := cal.Create(context.Background(), SubjectEnergy,
		Expected{Value: value, Comparator: comparator, WindowHours: 24},
		Because{Rationale: "slept well last night"},
		map[string]string{"day": "monday"},
		time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	return e
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	cal, _, _ := newTestCalibrator(t)
	ctx := context.Background()
	dueBy := time.Now().Add(time.Hour)

	_, err := cal.Create(ctx, "weather", Expected{Value: 7, Comparator: ComparatorGTE, WindowHours: 24}, Because{}, nil, dueBy)
	assert.ErrorIs(t, err, ErrInvalidSubject)

	_, err = cal.Create(ctx, SubjectEnergy, Expected{Value: 7, Comparator: "!=", WindowHours: 24}, Because{}, nil, dueBy)
	assert.ErrorIs(t, err, ErrInvalidComparator)

	_, err = cal.Create(ctx, SubjectEnergy, Expected{Value: 7, Comparator: ComparatorGTE}, Because{}, nil, dueBy)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestEvaluate_Comparators(t *testing.T) {
	tests := []struct {
		name       string
		comparator Comparator
		expected   float64
		observed   float64
		correct    bool
	}{
		{"gte holds", ComparatorGTE, 7, 8, true},
		{"gte holds at boundary", ComparatorGTE, 7, 7, true},
		{"gte fails", ComparatorGTE, 7, 5, false},
		{"lte holds", ComparatorLTE, 3, 2, true},
		{"lte fails", ComparatorLTE, 3, 4, false},
		{"approx holds within tolerance", ComparatorApprox, 5, 5.4, true},
		{"approx holds at tolerance", ComparatorApprox, 5, 5.5, true},
		{"approx fails beyond tolerance", ComparatorApprox, 5, 5.6, false},
		{"approx holds below", ComparatorApprox, 5, 4.6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal, _, _ := newTestCalibrator(t)
			e := createEnergyExpectation(t, cal, tt.expected, tt.comparator)

			got, err := cal.Evaluate(context.Background(), e.ID, tt.observed, nil)
			require.NoError(t, err)
			require.NotNil(t, got.WasCorrect)
			assert.Equal(t, tt.correct, *got.WasCorrect)
			assert.Equal(t, StatusEvaluated, got.Status)
			require.NotNil(t, got.ObservedValue)
			assert.Equal(t, tt.observed, *got.ObservedValue)
			assert.NotNil(t, got.EvaluatedAt)
		})
	}
}

func TestEvaluate_WrongPredictionEmitsContradiction(t *testing.T) {
	// Predicted energy >= 7, observed 5: the finding must carry both the
	// prediction and the observation.
	cal, _, sink := newTestCalibrator(t)
	e := createEnergyExpectation(t, cal, 7, ComparatorGTE)

	_, err := cal.Evaluate(context.Background(), e.ID, 5, []string{"sig-1", "sig-2"})
	require.NoError(t, err)

	findings := sink.Findings()
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "energy", f.Subject)
	assert.Equal(t, "contradicts", f.Predicate)
	assert.Equal(t, 7.0, f.Stats.Expected.Value)
	assert.Equal(t, 5.0, f.Stats.Observed)
	assert.Equal(t, ContradictionStrength, f.Strength)
	assert.Equal(t, e.ID, f.Evidence.ExpectationID)
	assert.Equal(t, []string{"sig-1", "sig-2"}, f.Evidence.SignalIDs)
	assert.Equal(t, "slept well last night", f.Rationale)
}

func TestEvaluate_CorrectPredictionEmitsNothing(t *testing.T) {
	cal, _, sink := newTestCalibrator(t)
	e := createEnergyExpectation(t, cal, 7, ComparatorGTE)

	_, err := cal.Evaluate(context.Background(), e.ID, 8, nil)
	require.NoError(t, err)
	assert.Empty(t, sink.Findings())
}

func TestEvaluate_EvidenceCapped(t *testing.T) {
	cal, _, sink := newTestCalibrator(t)
	e := createEnergyExpectation(t, cal, 7, ComparatorGTE)

	signals := make([]string, 80)
	for i := range signals {
		signals[i] = fmt.Sprintf("sig-%d", i)
	}

	_, err := cal.Evaluate(context.Background(), e.ID, 2, signals)
	require.NoError(t, err)

	findings := sink.Findings()
	require.Len(t, findings, 1)
	assert.Len(t, findings[0].Evidence.SignalIDs, MaxEvidenceSignals)
}

func TestEvaluate_UnknownIDFails(t *testing.T) {
	cal, _, _ := newTestCalibrator(t)

	_, err := cal.Evaluate(context.Background(), "no-such-id", 5, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluate_OneShot(t *testing.T) {
	// Re-evaluating a scored or expired row is a caller bug; the first
	// result must stand.
	cal, _, _ := newTestCalibrator(t)
	e := createEnergyExpectation(t, cal, 7, ComparatorGTE)
	ctx := context.Background()

	first, err := cal.Evaluate(ctx, e.ID, 8, nil)
	require.NoError(t, err)
	assert.True(t, *first.WasCorrect)

	_, err = cal.Evaluate(ctx, e.ID, 2, nil)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestGetPendingAndOverdue(t *testing.T) {
	cal, store, _ := newTestCalibrator(t)
	ctx := context.Background()

	createEnergyExpectation(t, cal, 7, ComparatorGTE)

	overdue, err := New(SubjectMood, Expected{Value: 5, Comparator: ComparatorApprox, WindowHours: 12}, Because{}, nil, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.CreateExpectation(ctx, overdue))

	pending, err := cal.GetPending(ctx, "")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	onlyMood, err := cal.GetPending(ctx, SubjectMood)
	require.NoError(t, err)
	require.Len(t, onlyMood, 1)
	assert.Equal(t, overdue.ID, onlyMood[0].ID)

	late, err := cal.GetOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, overdue.ID, late[0].ID)
}

func TestExpireOld(t *testing.T) {
	// A pending expectation 72 hours past its deadline is expired by the
	// 48-hour sweep; one merely past its deadline is left pending.
	cal, store, _ := newTestCalibrator(t)
	ctx := context.Background()

	stale, err := New(SubjectEnergy, Expected{Value: 7, Comparator: ComparatorGTE, WindowHours: 24}, Because{}, nil, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.CreateExpectation(ctx, stale))

	recent, err := New(SubjectMood, Expected{Value: 5, Comparator: ComparatorApprox, WindowHours: 12}, Because{}, nil, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.CreateExpectation(ctx, recent))

	count, err := cal.ExpireOld(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetExpectation(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	got, err = store.GetExpectation(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestScore(t *testing.T) {
	cal, _, _ := newTestCalibrator(t)
	ctx := context.Background()

	// No evaluations yet: all zeros, no division by zero.
	score, err := cal.Score(ctx)
	require.NoError(t, err)
	assert.Equal(t, CalibrationScore{}, score)

	// Three evaluations, two correct.
	for _, tc := range []struct{ value, observed float64 }{
		{7, 8},
		{7, 9},
		{7, 3},
	} {
		e := createEnergyExpectation(t, cal, tc.value, ComparatorGTE)
		_, err := cal.Evaluate(ctx, e.ID, tc.observed, nil)
		require.NoError(t, err)
	}

	score, err = cal.Score(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, score.Total)
	assert.Equal(t, 2, score.Correct)
	assert.InDelta(t, 2.0/3.0, score.Score, 1e-9)
}

func TestScore_ExcludesExpired(t *testing.T) {
	cal, store, _ := newTestCalibrator(t)
	ctx := context.Background()

	stale, err := New(SubjectEnergy, Expected{Value: 7, Comparator: ComparatorGTE, WindowHours: 24}, Because{}, nil, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.CreateExpectation(ctx, stale))

	_, err = cal.ExpireOld(ctx, 48*time.Hour)
	require.NoError(t, err)

	score, err := cal.Score(ctx)
	require.NoError(t, err)
	assert.Equal(t, CalibrationScore{}, score)
}
