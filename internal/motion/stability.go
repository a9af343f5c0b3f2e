package motion

import (
	"math"
	"time"
)

// ClassificationRecord is one classification outcome kept for
// stability analysis
type ClassificationRecord struct {
	Timestamp      time.Time     `json:"timestamp"`
	Movement       MovementType  `json:"movement"`
	Confidence     float64       `json:"confidence"`
	ActualMovement *MovementType `json:"actualMovement,omitempty"` // For future ground truth learning
}

// StabilityResult contains stability metrics over recent
// classifications and a dampening recommendation for consumers
type StabilityResult struct {
	StabilityFactor   float64
	VarianceFactor    float64
	OscillationFactor float64
	ErrorFactor       float64
	OscillationCount  int
	ShouldDampen      bool
	Recommendation    string
}

// ComputeClassificationStability calculates stability metrics from
// recent classification history. Consumers use the recommendation to
// dampen reactions to a flapping classifier; the classification result
// itself is never altered.
func ComputeClassificationStability(history []ClassificationRecord) StabilityResult {
	// Insufficient history - need at least 2 classifications
	if len(history) < 2 {
		return StabilityResult{
			Recommendation: "insufficient_history",
		}
	}

	// Take last 6 classifications (or fewer if not enough history)
	windowSize := 6
	if len(history) < windowSize {
		windowSize = len(history)
	}
	recent := history[len(history)-windowSize:]

	varianceFactor := confidenceVariance(recent)

	oscillationCount := oscillations(recent)
	oscillationFactor := math.Min(0.3, float64(oscillationCount)*0.1)

	errorFactor := errorTrend(recent)

	stabilityFactor := varianceFactor + oscillationFactor + errorFactor

	shouldDampen := stabilityFactor >= 0.15 || oscillationCount > 2

	return StabilityResult{
		StabilityFactor:   stabilityFactor,
		VarianceFactor:    varianceFactor,
		OscillationFactor: oscillationFactor,
		ErrorFactor:       errorFactor,
		OscillationCount:  oscillationCount,
		ShouldDampen:      shouldDampen,
		Recommendation:    recommendation(stabilityFactor, oscillationCount),
	}
}

// confidenceVariance measures consistency of classifier confidence
// over time, capped at 0.4
func confidenceVariance(records []ClassificationRecord) float64 {
	if len(records) < 2 {
		return 0.0
	}

	sum := 0.0
	for _, r := range records {
		sum += r.Confidence
	}
	mean := sum / float64(len(records))

	variance := 0.0
	for _, r := range records {
		diff := r.Confidence - mean
		variance += diff * diff
	}
	variance /= float64(len(records))

	return math.Min(0.4, variance*2.0)
}

// oscillations counts movement type flips in classification history
func oscillations(records []ClassificationRecord) int {
	if len(records) < 2 {
		return 0
	}

	flips := 0
	for i := 1; i < len(records); i++ {
		if records[i].Movement != records[i-1].Movement {
			flips++
		}
	}

	return flips
}

// errorTrend measures whether classifications are improving or
// degrading against ground truth. Returns 0 until ActualMovement is
// populated.
func errorTrend(records []ClassificationRecord) float64 {
	var withOutcomes []ClassificationRecord
	for _, r := range records {
		if r.ActualMovement != nil {
			withOutcomes = append(withOutcomes, r)
		}
	}

	// Need at least 2 records with outcomes to calculate a trend
	if len(withOutcomes) < 2 {
		return 0.0
	}

	// Calculate errors (0 = correct, 1 = wrong)
	errors := make([]float64, len(withOutcomes))
	for i, r := range withOutcomes {
		if r.Movement == *r.ActualMovement {
			errors[i] = 0.0
		} else {
			errors[i] = 1.0
		}
	}

	// Positive slope = errors increasing, negative = decreasing
	firstError := errors[0]
	lastError := errors[len(errors)-1]
	trend := (lastError - firstError) / float64(len(errors)-1)

	return math.Min(0.3, math.Abs(trend)*0.5)
}

// recommendation maps stability metrics to a consumer recommendation
func recommendation(stabilityFactor float64, oscillationCount int) string {
	// High oscillation - prefer current state
	if oscillationCount > 2 {
		return "bias_current_state"
	}

	if stabilityFactor > 0.3 {
		return "high_dampening"
	}

	if stabilityFactor >= 0.15 {
		return "moderate_dampening"
	}

	return "maintain_course"
}
