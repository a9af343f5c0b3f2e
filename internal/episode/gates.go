package episode

import (
	"time"

	"github.com/stridelabs/stride-platform/internal/motion"
)

const (
	// MaintainConfidence is the minimum confidence for a classification
	// to extend the current episode's statistics
	MaintainConfidence = 0.3

	// ChangeConfidence is the minimum confidence for a classification
	// to close the current episode and open a new one
	ChangeConfidence = 0.6

	// StreakOverride is the number of consecutive identical
	// classifications that stands in for a single high-confidence one
	StreakOverride = 3

	// MinEpisodeHold blocks a new transition for this long after the
	// previous one
	MinEpisodeHold = 10 * time.Second
)

// TransitionDecision is the outcome of the episode gates for one
// classification
type TransitionDecision struct {
	Accept             bool
	Reason             string
	RequiredConfidence float64
}

// ShouldTransition determines whether a movement classification should
// close the current episode and open a new one. Implements confidence
// and timing gates to prevent episode churn from a flapping classifier.
func ShouldTransition(
	current *motion.MovementType,
	lastTransition *time.Time,
	at time.Time,
	candidate motion.MovementType,
	confidence float64,
	streak int,
) TransitionDecision {
	// Gate 0: unclassified windows never form episodes
	if candidate == motion.Unknown {
		return TransitionDecision{Accept: false, Reason: "unclassified"}
	}

	// Gate 1: first classification always opens an episode
	if current == nil {
		return TransitionDecision{Accept: true, Reason: "initial_state"}
	}

	isChange := candidate != *current

	// Gate 2: confidence threshold (state-dependent)
	required := MaintainConfidence
	if isChange {
		required = ChangeConfidence
	}

	if !isChange {
		if confidence < required {
			return TransitionDecision{Accept: false, Reason: "low_confidence", RequiredConfidence: required}
		}
		return TransitionDecision{Accept: false, Reason: "maintained", RequiredConfidence: required}
	}

	// A sustained streak of the candidate stands in for a single
	// high-confidence classification
	confident := confidence >= required ||
		(streak >= StreakOverride && confidence >= MaintainConfidence)
	if !confident {
		return TransitionDecision{Accept: false, Reason: "low_confidence", RequiredConfidence: required}
	}

	// Gate 3: time hysteresis
	if lastTransition != nil && at.Sub(*lastTransition) < MinEpisodeHold {
		return TransitionDecision{Accept: false, Reason: "hold_window", RequiredConfidence: required}
	}

	return TransitionDecision{Accept: true, Reason: "transition", RequiredConfidence: required}
}
