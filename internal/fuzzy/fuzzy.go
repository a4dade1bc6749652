// Package fuzzy provides edit-distance text matching for ZapDesk.
//
// It powers two independent features: reply suggestion in the agent
// dashboard and fuzzy keyword triggers in the always-on matcher.
package fuzzy

import (
	"log/slog"
	"strings"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// DefaultSensitivity is the maximum edit distance accepted when the host
// does not configure one.
const DefaultSensitivity = 2

// Distance computes the Levenshtein edit distance between a and b: the
// minimum number of single-character insertions, deletions and
// substitutions to turn a into b.
func Distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	matrix := make([][]int, len(rb)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(ra)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(ra); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(rb); i++ {
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				matrix[i][j] = matrix[i-1][j-1]
			} else {
				matrix[i][j] = min3(
					matrix[i-1][j-1]+1, // substitution
					matrix[i][j-1]+1,   // insertion
					matrix[i-1][j]+1,   // deletion
				)
			}
		}
	}

	return matrix[len(rb)][len(ra)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Suggest returns the quick reply whose label is closest to the input,
// or nil when no label is within sensitivity edits. Comparison is
// lower-cased; ties keep the first candidate in catalog order.
func Suggest(catalog []models.QuickReply, input string, sensitivity int) *models.QuickReply {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return nil
	}

	var best *models.QuickReply
	bestDistance := 0
	for i := range catalog {
		d := Distance(normalized, strings.ToLower(catalog[i].Label))
		if best == nil || d < bestDistance {
			best = &catalog[i]
			bestDistance = d
		}
	}

	if best == nil || bestDistance > sensitivity {
		return nil
	}

	slog.Debug("fuzzy.Suggest matched", "label", best.Label, "distance", bestDistance, "sensitivity", sensitivity)
	return best
}

// MatchTrigger reports whether the trigger fires for the given message.
// A keyword hit (exact substring, or fuzzy per-word when the trigger
// enables it) is required, then all required words must be present and
// no excluded word may appear.
func MatchTrigger(trigger models.Trigger, message string) bool {
	if !trigger.Enabled {
		return false
	}

	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return false
	}

	if !keywordHit(trigger, normalized) {
		return false
	}

	for _, word := range trigger.RequiredWords {
		if !strings.Contains(normalized, strings.ToLower(word)) {
			return false
		}
	}
	for _, word := range trigger.ExcludedWords {
		if strings.Contains(normalized, strings.ToLower(word)) {
			return false
		}
	}

	return true
}

// keywordHit checks the OR layer: any keyword contained in the message,
// or fuzzily matching one of its words when UseFuzzyMatch is set.
func keywordHit(trigger models.Trigger, normalized string) bool {
	words := strings.Fields(normalized)
	for _, keyword := range trigger.Keywords {
		kw := strings.ToLower(strings.TrimSpace(keyword))
		if kw == "" {
			continue
		}
		if strings.Contains(normalized, kw) {
			return true
		}
		if trigger.UseFuzzyMatch {
			for _, word := range words {
				if Distance(word, kw) <= DefaultSensitivity {
					return true
				}
			}
		}
	}
	return false
}
