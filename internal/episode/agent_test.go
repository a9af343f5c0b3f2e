package episode

import (
	"math"
	"testing"
	"time"

	"github.com/stridelabs/stride-platform/internal/motion"
)

func makeFeatures(stepFreq float64) motion.FeatureVector {
	return motion.FeatureVector{
		AccMean:         9.8,
		AccStd:          1.2,
		AccVariance:     1.44,
		GyroMean:        0.4,
		GyroStd:         0.5,
		VerticalAccMean: 9.7,
		VerticalAccStd:  0.9,
		StepFrequency:   stepFreq,
		TiltAngle:       12.0,
		SampleCount:     50,
	}
}

func TestOpenEpisodeAccumulate(t *testing.T) {
	start := time.Date(2025, 6, 26, 12, 0, 0, 0, time.UTC)
	ep := &openEpisode{
		device:    "watch-01",
		movement:  motion.WalkingStraight,
		startedAt: start,
	}

	ep.accumulate(0.8, makeFeatures(2.0), start)
	ep.accumulate(0.6, makeFeatures(2.4), start.Add(time.Second))

	if ep.eventCount != 2 {
		t.Errorf("eventCount = %d, want 2", ep.eventCount)
	}
	if got := ep.meanConfidence(); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("meanConfidence() = %v, want 0.7", got)
	}
	if !ep.lastEventAt.Equal(start.Add(time.Second)) {
		t.Errorf("lastEventAt = %v, want %v", ep.lastEventAt, start.Add(time.Second))
	}
}

func TestOpenEpisodeCentroid(t *testing.T) {
	start := time.Date(2025, 6, 26, 12, 0, 0, 0, time.UTC)
	ep := &openEpisode{
		device:    "watch-01",
		movement:  motion.WalkingStraight,
		startedAt: start,
	}

	ep.accumulate(0.8, makeFeatures(2.0), start)
	ep.accumulate(0.8, makeFeatures(3.0), start.Add(time.Second))

	centroid := ep.centroid()
	values := centroid.Slice()
	if len(values) != 9 {
		t.Fatalf("centroid dimensions = %d, want 9", len(values))
	}

	// StepFrequency is the 8th feature; the mean of 2.0 and 3.0 is 2.5.
	if math.Abs(float64(values[7])-2.5) > 1e-6 {
		t.Errorf("centroid step frequency = %v, want 2.5", values[7])
	}
	if math.Abs(float64(values[0])-9.8) > 1e-6 {
		t.Errorf("centroid acc mean = %v, want 9.8", values[0])
	}
}

func TestOpenEpisodeMeanConfidenceEmpty(t *testing.T) {
	ep := &openEpisode{device: "watch-01"}
	if got := ep.meanConfidence(); got != 0.0 {
		t.Errorf("meanConfidence() = %v, want 0.0", got)
	}
}
