package preference

import (
	"context"
	"fmt"
	"strings"
)

// GetForContext returns active preferences in the given categories at or
// above minConfidence. An empty category list means all categories.
func (l *Learner) GetForContext(ctx context.Context, categories []Category, minConfidence float64) ([]*LearnedPreference, error) {
	for _, c := range categories {
		if !ValidCategory(c) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, c)
		}
	}
	return l.store.ListActive(ctx, categories, minConfidence)
}

// GetValue returns the active value for (category, key) at or above
// minConfidence. A row below the floor reports ErrPreferenceNotFound,
// same as a missing one: the caller asked for a preference it can act
// on, and a weak one is not that.
func (l *Learner) GetValue(ctx context.Context, category Category, key string, minConfidence float64) (*LearnedPreference, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	p, err := l.store.GetActive(ctx, category, key)
	if err != nil {
		return nil, err
	}
	if p.Confidence < minConfidence {
		return nil, ErrPreferenceNotFound
	}
	return p, nil
}

// History returns every row, active and superseded, for (category, key),
// newest first. Supersession keeps old rows, so this is the full audit
// trail of how the preference evolved.
func (l *Learner) History(ctx context.Context, category Category, key string) ([]*LearnedPreference, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	return l.store.ListByKey(ctx, category, key)
}

// FormatForPrompt renders active preferences at or above minConfidence as
// a system-prompt block, grouped by category. An empty category list
// means all categories. Returns "" when nothing qualifies so callers can
// splice the result in unconditionally.
func (l *Learner) FormatForPrompt(ctx context.Context, categories []Category, minConfidence float64) (string, error) {
	for _, c := range categories {
		if !ValidCategory(c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidCategory, c)
		}
	}

	prefs, err := l.store.ListActive(ctx, categories, minConfidence)
	if err != nil {
		return "", err
	}
	if len(prefs) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Learned user preferences:\n")

	var current Category
	for _, p := range prefs {
		if p.Category != current {
			current = p.Category
			fmt.Fprintf(&b, "\n[%s]\n", current)
		}
		fmt.Fprintf(&b, "- %s: %s (confidence %.2f)", p.Key, p.Value, p.Confidence)
		if p.Description != "" {
			fmt.Fprintf(&b, " - %s", p.Description)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
