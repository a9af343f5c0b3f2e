package motion

import (
	"testing"
)

func TestClassifyInsufficientSamples(t *testing.T) {
	classifier := NewClassifier(20)

	tests := []struct {
		name        string
		sampleCount int
	}{
		{"empty buffer", 0},
		{"half filled", 10},
		{"one below threshold", 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Strong walking features must not matter below the
			// sample threshold
			f := FeatureVector{
				AccStd:          2.0,
				AccVariance:     2.5,
				GyroStd:         0.5,
				VerticalAccMean: 9.9,
				StepFrequency:   2.0,
				SampleCount:     tt.sampleCount,
			}

			result := classifier.Classify(f)

			if result.Movement != Unknown {
				t.Errorf("Classify() movement = %v, want %v", result.Movement, Unknown)
			}
			if result.Confidence != 0.0 {
				t.Errorf("Classify() confidence = %v, want 0.0", result.Confidence)
			}
		})
	}
}

func TestClassifyStationaryShortCircuit(t *testing.T) {
	classifier := NewClassifier(20)

	// Low accelerometer and gyroscope deviation wins regardless of
	// every other feature value
	f := FeatureVector{
		AccMean:         9.8,
		AccStd:          0.4,
		AccVariance:     3.0,
		GyroStd:         0.19,
		VerticalAccMean: 15.0,
		VerticalAccStd:  2.0,
		StepFrequency:   2.0,
		SampleCount:     50,
	}

	result := classifier.Classify(f)

	if result.Movement != Stationary {
		t.Errorf("Classify() movement = %v, want %v", result.Movement, Stationary)
	}
	if result.Confidence != StationaryConfidence {
		t.Errorf("Classify() confidence = %v, want %v", result.Confidence, StationaryConfidence)
	}
}

func TestClassifyElevator(t *testing.T) {
	classifier := NewClassifier(20)

	// Smooth ride: low gyro, no step cadence, slight acc deviation,
	// vertical mean near gravity. All four elevator contributions fire.
	f := FeatureVector{
		AccMean:         9.8,
		AccStd:          0.6,
		AccVariance:     0.36,
		GyroStd:         0.25,
		VerticalAccMean: 9.9,
		VerticalAccStd:  1.0,
		StepFrequency:   0.3,
		SampleCount:     50,
	}

	result := classifier.Classify(f)

	if result.Movement != InElevator {
		t.Errorf("Classify() movement = %v, want %v", result.Movement, InElevator)
	}
	if !almostEqual(result.Confidence, 1.0) {
		t.Errorf("Classify() confidence = %v, want 1.0", result.Confidence)
	}
}

func TestClassifyTieKeepsEarlierRule(t *testing.T) {
	classifier := NewClassifier(20)

	// Elevator scores 0.5 (gyro + accStd band) and stairs scores 0.5
	// (vertical std + variance); the strict comparison keeps the
	// earlier-evaluated elevator rule
	f := FeatureVector{
		AccMean:         10.0,
		AccStd:          0.6,
		AccVariance:     4.5,
		GyroMean:        0.1,
		GyroStd:         0.15,
		VerticalAccMean: 12.0,
		VerticalAccStd:  1.8,
		StepFrequency:   0.8,
		SampleCount:     50,
	}

	elevator := classifier.elevatorScore(f)
	stairs := classifier.stairsScore(f)
	if !almostEqual(elevator, stairs) {
		t.Fatalf("test vector must tie: elevator = %v, stairs = %v", elevator, stairs)
	}

	result := classifier.Classify(f)

	if result.Movement != InElevator {
		t.Errorf("Classify() movement = %v, want %v on tie", result.Movement, InElevator)
	}
	if !almostEqual(result.Confidence, 0.5) {
		t.Errorf("Classify() confidence = %v, want 0.5", result.Confidence)
	}
}

func TestClassifyStairsDirection(t *testing.T) {
	classifier := NewClassifier(20)

	// All four stairs contributions fire; only the vertical mean
	// flips between the two test cases
	base := FeatureVector{
		AccMean:        10.5,
		AccStd:         1.73,
		AccVariance:    3.0,
		GyroStd:        0.9,
		VerticalAccStd: 2.0,
		StepFrequency:  1.2,
		SampleCount:    50,
	}

	tests := []struct {
		name            string
		verticalAccMean float64
		want            MovementType
	}{
		{"climbing", 11.0, ClimbingStairs},
		{"descending", 8.0, DescendingStairs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			f.VerticalAccMean = tt.verticalAccMean

			result := classifier.Classify(f)

			if result.Movement != tt.want {
				t.Errorf("Classify() movement = %v, want %v", result.Movement, tt.want)
			}
			if !almostEqual(result.Confidence, 1.0) {
				t.Errorf("Classify() confidence = %v, want 1.0", result.Confidence)
			}
		})
	}
}

func TestClassifyWalking(t *testing.T) {
	classifier := NewClassifier(20)

	// Regular cadence in the walking band with moderate variance and
	// gyro noise; all four walking contributions fire
	f := FeatureVector{
		AccMean:         10.0,
		AccStd:          1.58,
		AccVariance:     2.5,
		GyroStd:         0.5,
		VerticalAccMean: 9.9,
		VerticalAccStd:  1.0,
		StepFrequency:   2.0,
		SampleCount:     50,
	}

	result := classifier.Classify(f)

	if result.Movement != WalkingStraight {
		t.Errorf("Classify() movement = %v, want %v", result.Movement, WalkingStraight)
	}
	if !almostEqual(result.Confidence, 1.0) {
		t.Errorf("Classify() confidence = %v, want 1.0", result.Confidence)
	}
}

func TestClassifyNoPositiveScore(t *testing.T) {
	classifier := NewClassifier(20)

	// Every threshold predicate misses: high gyro, cadence between
	// the elevator and stairs bands, tiny variance, vertical mean far
	// from gravity
	f := FeatureVector{
		AccMean:         9.8,
		AccStd:          0.15,
		AccVariance:     0.0225,
		GyroStd:         1.2,
		VerticalAccMean: 13.0,
		VerticalAccStd:  1.0,
		StepFrequency:   0.9,
		SampleCount:     50,
	}

	result := classifier.Classify(f)

	if result.Movement != Unknown {
		t.Errorf("Classify() movement = %v, want %v", result.Movement, Unknown)
	}
	if result.Confidence != 0.0 {
		t.Errorf("Classify() confidence = %v, want 0.0", result.Confidence)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	classifier := NewClassifier(20)

	f := FeatureVector{
		AccStd:          1.58,
		AccVariance:     2.5,
		GyroStd:         0.5,
		VerticalAccMean: 9.9,
		StepFrequency:   2.0,
		SampleCount:     50,
	}

	first := classifier.Classify(f)
	for i := 0; i < 10; i++ {
		if got := classifier.Classify(f); got != first {
			t.Fatalf("Classify() = %v on repeat call, want %v", got, first)
		}
	}
}

func TestDisplayLabel(t *testing.T) {
	tests := []struct {
		movement MovementType
		want     string
	}{
		{Stationary, "STATIONARY"},
		{WalkingStraight, "WALKING STRAIGHT"},
		{ClimbingStairs, "CLIMBING STAIRS"},
		{DescendingStairs, "DESCENDING STAIRS"},
		{InElevator, "IN ELEVATOR"},
		{Unknown, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.movement.DisplayLabel(); got != tt.want {
			t.Errorf("DisplayLabel(%v) = %q, want %q", tt.movement, got, tt.want)
		}
	}
}

func TestConfidencePercent(t *testing.T) {
	tests := []struct {
		confidence float64
		want       int
	}{
		{0.0, 0},
		{0.9, 90},
		{0.456, 46},
		{0.454, 45},
		{1.0, 100},
	}

	for _, tt := range tests {
		if got := ConfidencePercent(tt.confidence); got != tt.want {
			t.Errorf("ConfidencePercent(%v) = %d, want %d", tt.confidence, got, tt.want)
		}
	}
}
