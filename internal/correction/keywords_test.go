package correction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectQuick_KeywordMatches(t *testing.T) {
	// Every message containing a quick keyword must come back as a
	// correction with the fixed confidence and the matched phrase.
	tests := []struct {
		name     string
		message  string
		wantType Type
		wantPat  string
	}{
		{"explicit plain", "No, that's wrong", TypeExplicit, "that's wrong"},
		{"explicit no apostrophe", "thats wrong, it was Tuesday", TypeExplicit, "thats wrong"},
		{"explicit not asked", "this is not what I asked for", TypeExplicit, "not what i asked"},
		{"implicit actually", "Actually I need it for Friday", TypeImplicit, "actually"},
		{"implicit meant", "I meant the other list", TypeImplicit, "i meant"},
		{"modification", "change it to 6pm please", TypeModification, "change it to"},
		{"retry", "that didn't work, try again", TypeRetry, "try again"},
		{"uppercase input", "TRY AGAIN", TypeRetry, "try again"},
		{"padded input", "   redo   ", TypeRetry, "redo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := DetectQuick(tt.message)
			assert.True(t, det.IsCorrection)
			assert.Equal(t, tt.wantType, det.Type)
			assert.Equal(t, QuickConfidence, det.Confidence)
			assert.Equal(t, tt.wantPat, det.PatternMatched)
		})
	}
}

func TestDetectQuick_NonMatches(t *testing.T) {
	// Messages with no keyword must return a zero-value detection.
	tests := []string{
		"add milk to the grocery list",
		"thanks, that looks great",
		"what's on my calendar tomorrow?",
		"",
		"   ",
	}

	for _, msg := range tests {
		det := DetectQuick(msg)
		assert.False(t, det.IsCorrection, "message %q", msg)
		assert.Equal(t, 0.0, det.Confidence)
		assert.Empty(t, det.PatternMatched)
	}
}

func TestDetectQuick_FirstMatchWins(t *testing.T) {
	// Explicit phrases rank above implicit ones, so a message containing
	// both classifies as explicit.
	det := DetectQuick("No, that's wrong. Actually I meant Thursday")
	assert.True(t, det.IsCorrection)
	assert.Equal(t, TypeExplicit, det.Type)
}
