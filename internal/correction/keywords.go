package correction

import "strings"

// QuickConfidence is the fixed confidence assigned to keyword matches.
// Keyword detection is cheap and deliberately imprecise; the deep pass
// refines or vetoes it.
const QuickConfidence = 0.7

// keywordSet pairs a correction type with the phrases that signal it.
type keywordSet struct {
	corrType Type
	phrases  []string
}

// quickKeywords are scanned in order; the first matching phrase wins.
// Explicit phrasings are checked before implicit ones so "no, that's
// wrong, I meant X" classifies as explicit.
var quickKeywords = []keywordSet{
	{TypeExplicit, []string{
		"that's wrong",
		"thats wrong",
		"that is wrong",
		"that's not right",
		"thats not right",
		"not what i asked",
		"not what i meant",
		"you got it wrong",
		"incorrect",
		"no, i said",
	}},
	{TypeImplicit, []string{
		"actually",
		"i meant",
		"instead",
		"rather than",
		"i wanted",
		"not that one",
	}},
	{TypeModification, []string{
		"change it to",
		"change that to",
		"change the",
		"switch it to",
		"update it to",
		"make it",
		"move it to",
		"rename it",
	}},
	{TypeRetry, []string{
		"try again",
		"try that again",
		"do it again",
		"redo",
		"start over",
		"one more time",
	}},
}

// DetectQuick scans the message against the fixed keyword sets. It is
// pure string matching with no I/O, safe to call speculatively on every
// inbound message. The first matching phrase wins with QuickConfidence;
// no match returns a zero-confidence non-correction.
func DetectQuick(message string) Detection {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return Detection{}
	}

	for _, set := range quickKeywords {
		for _, phrase := range set.phrases {
			if strings.Contains(normalized, phrase) {
				return Detection{
					IsCorrection:   true,
					Type:           set.corrType,
					Confidence:     QuickConfidence,
					PatternMatched: phrase,
				}
			}
		}
	}

	return Detection{}
}
