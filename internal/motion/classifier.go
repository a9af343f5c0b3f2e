package motion

import "math"

// Classification thresholds
const (
	// GravityMagnitude is the expected vertical accelerometer reading
	// at rest (m/s²)
	GravityMagnitude = 9.8

	// Stationary short-circuit thresholds
	StationaryAccStdMax  = 0.5
	StationaryGyroStdMax = 0.2
	StationaryConfidence = 0.9

	// Elevator thresholds (smooth ride, no steps, near-gravity vertical)
	ElevatorGyroStdMax       = 0.3
	ElevatorStepFreqMax      = 0.5
	ElevatorAccStdMin        = 0.2
	ElevatorAccStdMax        = 1.0
	ElevatorGravityTolerance = 1.0

	// Stairs thresholds (strong vertical variation at step cadence)
	StairsVerticalStdMin = 1.5
	StairsStepFreqMin    = 1.0
	StairsStepFreqMax    = 2.5
	StairsAccVarianceMin = 2.0
	StairsGyroStdMin     = 0.2
	StairsGyroStdMax     = 1.0

	// Walking thresholds (regular step cadence, moderate variance)
	WalkingStepFreqMin      = 1.5
	WalkingStepFreqMax      = 3.0
	WalkingAccVarianceMin   = 1.0
	WalkingAccVarianceMax   = 4.0
	WalkingGyroStdMin       = 0.1
	WalkingGyroStdMax       = 0.8
	WalkingGravityTolerance = 2.0
)

// Classifier maps a feature vector to a movement type with a
// confidence score using an ordered set of scored heuristics. It is a
// pure function of the feature vector; identical inputs always produce
// identical results.
type Classifier struct {
	minSamples int
}

// NewClassifier creates a classifier that requires minSamples buffered
// samples before attempting classification
func NewClassifier(minSamples int) *Classifier {
	return &Classifier{
		minSamples: minSamples,
	}
}

// Classify evaluates the rules in fixed order:
//  1. insufficient data returns (UNKNOWN, 0.0) immediately
//  2. the stationary short-circuit takes precedence over all scored
//     rules regardless of their scores
//  3. elevator, stairs and walking scores compete; the strictly
//     highest score wins, ties keep the earlier-evaluated rule
func (c *Classifier) Classify(f FeatureVector) ClassificationResult {
	if f.SampleCount < c.minSamples {
		return ClassificationResult{Movement: Unknown, Confidence: 0.0}
	}

	if f.AccStd < StationaryAccStdMax && f.GyroStd < StationaryGyroStdMax {
		return ClassificationResult{Movement: Stationary, Confidence: StationaryConfidence}
	}

	best := ClassificationResult{Movement: Unknown, Confidence: 0.0}

	if score := c.elevatorScore(f); score > best.Confidence {
		best = ClassificationResult{Movement: InElevator, Confidence: score}
	}

	if score := c.stairsScore(f); score > best.Confidence {
		best = ClassificationResult{Movement: stairsDirection(f), Confidence: score}
	}

	if score := c.walkingScore(f); score > best.Confidence {
		best = ClassificationResult{Movement: WalkingStraight, Confidence: score}
	}

	return best
}

// elevatorScore rewards a smooth ride with no step cadence and a
// vertical reading near gravity
func (c *Classifier) elevatorScore(f FeatureVector) float64 {
	score := 0.0

	if f.GyroStd < ElevatorGyroStdMax {
		score += 0.3
	}
	if f.StepFrequency < ElevatorStepFreqMax {
		score += 0.3
	}
	if f.AccStd > ElevatorAccStdMin && f.AccStd < ElevatorAccStdMax {
		score += 0.2
	}
	if math.Abs(f.VerticalAccMean-GravityMagnitude) < ElevatorGravityTolerance {
		score += 0.2
	}

	return score
}

// stairsScore rewards strong vertical variation at step cadence
func (c *Classifier) stairsScore(f FeatureVector) float64 {
	score := 0.0

	if f.VerticalAccStd > StairsVerticalStdMin {
		score += 0.3
	}
	if f.StepFrequency >= StairsStepFreqMin && f.StepFrequency <= StairsStepFreqMax {
		score += 0.3
	}
	if f.AccVariance > StairsAccVarianceMin {
		score += 0.2
	}
	if f.GyroStd > StairsGyroStdMin && f.GyroStd < StairsGyroStdMax {
		score += 0.2
	}

	return score
}

// stairsDirection disambiguates climbing from descending by whether
// the mean vertical acceleration exceeds gravity
func stairsDirection(f FeatureVector) MovementType {
	if f.VerticalAccMean > GravityMagnitude {
		return ClimbingStairs
	}
	return DescendingStairs
}

// walkingScore rewards a regular step cadence with moderate variance
func (c *Classifier) walkingScore(f FeatureVector) float64 {
	score := 0.0

	if f.StepFrequency >= WalkingStepFreqMin && f.StepFrequency <= WalkingStepFreqMax {
		score += 0.4
	}
	if f.AccVariance >= WalkingAccVarianceMin && f.AccVariance <= WalkingAccVarianceMax {
		score += 0.3
	}
	if f.GyroStd > WalkingGyroStdMin && f.GyroStd < WalkingGyroStdMax {
		score += 0.2
	}
	if math.Abs(f.VerticalAccMean-GravityMagnitude) < WalkingGravityTolerance {
		score += 0.1
	}

	return score
}
