// Package modes classifies turns into processing modes using weighted
// keyword scoring, and computes the cheap immediate-signal flags the
// fast path attaches to every response. Both are deterministic: the same
// text against the same tables always yields the same result.
package modes

import (
	"sort"
	"strings"

	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

const (
	primaryWeight   = 3
	secondaryWeight = 1
)

// keywordSet holds one mode's weighted detection vocabulary.
type keywordSet struct {
	primary   []string
	secondary []string
}

// modeKeywords is the fixed detection table. Primary keywords are strong
// intent markers; secondary keywords only tip ties between modes that
// already scored.
var modeKeywords = map[models.Mode]keywordSet{
	models.ModeActionPlan: {
		primary:   []string{"plan", "steps", "how do i", "what should i do", "strategy", "goal"},
		secondary: []string{"organize", "schedule", "task", "prioritize", "deadline", "checklist"},
	},
	models.ModeVisualization: {
		primary:   []string{"visualize", "imagine", "picture", "breathing exercise", "calm place"},
		secondary: []string{"relax", "peaceful", "imagery", "meditation", "grounding"},
	},
}

// Detect scores the message against every mode's keyword table and
// returns the highest scorer. Ties and all-zero scores resolve to the
// general mode.
func Detect(message string) models.Mode {
	text := strings.ToLower(message)

	type scored struct {
		mode  models.Mode
		score int
	}
	scores := make([]scored, 0, len(modeKeywords))
	for mode, set := range modeKeywords {
		s := 0
		for _, kw := range set.primary {
			s += primaryWeight * strings.Count(text, kw)
		}
		for _, kw := range set.secondary {
			s += secondaryWeight * strings.Count(text, kw)
		}
		scores = append(scores, scored{mode: mode, score: s})
	}

	// Sort by score descending, then by mode name for a stable winner
	// independent of map iteration order.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].mode < scores[j].mode
	})

	if scores[0].score == 0 {
		return models.ModeGeneral
	}
	if len(scores) > 1 && scores[0].score == scores[1].score {
		return models.ModeGeneral
	}
	return scores[0].mode
}

// Resolve returns the turn's requested mode when valid, otherwise
// detects one from the message.
func Resolve(turn models.Turn) models.Mode {
	if turn.Mode != "" && turn.Mode.Valid() {
		return turn.Mode
	}
	return Detect(turn.Message)
}

// SuggestAlternate scores the message against every mode except current
// and returns the best alternate plus its score. Score zero means no
// suggestion.
func SuggestAlternate(message string, current models.Mode) (models.Mode, int) {
	text := strings.ToLower(message)

	best := models.ModeGeneral
	bestScore := 0
	// Iterate KnownModes, not the map, to keep the scan deterministic.
	for _, mode := range models.KnownModes {
		if mode == current {
			continue
		}
		set, ok := modeKeywords[mode]
		if !ok {
			continue
		}
		s := 0
		for _, kw := range set.primary {
			s += primaryWeight * strings.Count(text, kw)
		}
		for _, kw := range set.secondary {
			s += secondaryWeight * strings.Count(text, kw)
		}
		if s > bestScore {
			best, bestScore = mode, s
		}
	}
	return best, bestScore
}
