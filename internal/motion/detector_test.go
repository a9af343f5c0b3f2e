package motion

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stridelabs/stride-platform/pkg/config"
)

// fakeClock drives the detector cadence deterministically
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.BufferCapacity = 50
	cfg.MinSamples = 20
	cfg.SamplingRateHz = 20
	cfg.ClassifyIntervalMs = 1000
	return cfg
}

func newTestDetector(t *testing.T) (*Detector, *fakeClock, *[]MovementEvent) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 26, 12, 0, 0, 0, time.UTC)}
	detector := NewDetector("watch-01", testConfig(), clock.Now, testLogger())

	var events []MovementEvent
	detector.Subscribe(func(event MovementEvent) {
		events = append(events, event)
	})

	return detector, clock, &events
}

func TestDetectorCadenceGate(t *testing.T) {
	detector, clock, events := newTestDetector(t)

	// The first ingestion always ticks; the next 29 stay below the
	// interval
	for i := 0; i < 30; i++ {
		detector.Ingest(Sample{Acc: Vec3{Y: 9.8}})
	}

	if len(*events) != 1 {
		t.Fatalf("events after 30 same-instant ingestions = %d, want 1", len(*events))
	}

	clock.Advance(999 * time.Millisecond)
	detector.Ingest(Sample{Acc: Vec3{Y: 9.8}})

	if len(*events) != 1 {
		t.Fatalf("events at 999ms = %d, want 1 (still gated)", len(*events))
	}

	clock.Advance(1 * time.Millisecond)
	detector.Ingest(Sample{Acc: Vec3{Y: 9.8}})

	if len(*events) != 2 {
		t.Fatalf("events at 1000ms = %d, want 2", len(*events))
	}

	second := (*events)[1]
	if second.Features.SampleCount != 32 {
		t.Errorf("second tick SampleCount = %d, want 32", second.Features.SampleCount)
	}
	if second.Device != "watch-01" {
		t.Errorf("event device = %q, want %q", second.Device, "watch-01")
	}
	if second.EventID == "" {
		t.Error("event should carry an event ID")
	}
	if !second.Timestamp.Equal(clock.now) {
		t.Errorf("event timestamp = %v, want %v", second.Timestamp, clock.now)
	}
}

func TestDetectorStationaryScenario(t *testing.T) {
	detector, clock, events := newTestDetector(t)

	// Fill the buffer with a constant signal, then tick over all 50
	for i := 0; i < 49; i++ {
		detector.Ingest(Sample{Acc: Vec3{Y: 9.8}})
	}

	clock.Advance(time.Second)
	detector.Ingest(Sample{Acc: Vec3{Y: 9.8}})

	if len(*events) != 2 {
		t.Fatalf("events = %d, want 2", len(*events))
	}

	result := detector.LastClassification()
	if result.Movement != Stationary {
		t.Errorf("LastClassification() movement = %v, want %v", result.Movement, Stationary)
	}
	if result.Confidence != StationaryConfidence {
		t.Errorf("LastClassification() confidence = %v, want %v", result.Confidence, StationaryConfidence)
	}

	tick := (*events)[1]
	if tick.Features.SampleCount != 50 {
		t.Errorf("SampleCount = %d, want 50", tick.Features.SampleCount)
	}
	if tick.Features.AccStd != 0 {
		t.Errorf("AccStd = %v, want 0 for constant signal", tick.Features.AccStd)
	}
	if tick.Acc != (Vec3{Y: 9.8}) {
		t.Errorf("event Acc = %+v, want triggering sample", tick.Acc)
	}
}

func TestDetectorWalkingScenario(t *testing.T) {
	detector, clock, events := newTestDetector(t)

	// Vertical magnitude alternating 8/12 produces regular crossings;
	// gyro noise alternating 0.1/0.4 lands in the walking band
	sampleAt := func(i int) Sample {
		if i%2 == 0 {
			return Sample{Acc: Vec3{Y: 8.0}, Gyro: Vec3{X: 0.1}}
		}
		return Sample{Acc: Vec3{Y: 12.0}, Gyro: Vec3{X: 0.4}}
	}

	for i := 0; i < 19; i++ {
		detector.Ingest(sampleAt(i))
	}

	clock.Advance(time.Second)
	detector.Ingest(sampleAt(19))

	if len(*events) != 2 {
		t.Fatalf("events = %d, want 2", len(*events))
	}

	result := detector.LastClassification()
	if result.Movement != WalkingStraight {
		t.Errorf("LastClassification() movement = %v, want %v", result.Movement, WalkingStraight)
	}
	if result.Confidence <= 0 {
		t.Errorf("LastClassification() confidence = %v, want > 0", result.Confidence)
	}

	tick := (*events)[1]
	if !almostEqual(tick.Features.AccVariance, 4.0) {
		t.Errorf("AccVariance = %v, want 4.0", tick.Features.AccVariance)
	}
	if !almostEqual(tick.Features.GyroStd, 0.15) {
		t.Errorf("GyroStd = %v, want 0.15", tick.Features.GyroStd)
	}
	if !almostEqual(tick.Features.StepFrequency, 9.5) {
		t.Errorf("StepFrequency = %v, want 9.5", tick.Features.StepFrequency)
	}
}

func TestDetectorForceClassify(t *testing.T) {
	detector, _, events := newTestDetector(t)

	for i := 0; i < 5; i++ {
		detector.Ingest(Sample{Acc: Vec3{Y: 9.8}})
	}

	if len(*events) != 1 {
		t.Fatalf("events before force = %d, want 1", len(*events))
	}

	result := detector.ForceClassify()

	if len(*events) != 2 {
		t.Fatalf("events after force = %d, want 2", len(*events))
	}
	if result.Movement != Unknown {
		t.Errorf("ForceClassify() movement = %v, want %v below sample threshold", result.Movement, Unknown)
	}
	if result != detector.LastClassification() {
		t.Errorf("ForceClassify() = %v, LastClassification() = %v, want equal", result, detector.LastClassification())
	}
}

func TestDetectorBufferEviction(t *testing.T) {
	detector, _, _ := newTestDetector(t)

	for i := 0; i < 60; i++ {
		detector.Ingest(markerSample(i))
	}

	if detector.BufferLen() != 50 {
		t.Errorf("BufferLen() = %d, want 50", detector.BufferLen())
	}
}

func TestDetectorInitialClassification(t *testing.T) {
	detector, _, _ := newTestDetector(t)

	result := detector.LastClassification()
	if result.Movement != Unknown || result.Confidence != 0.0 {
		t.Errorf("LastClassification() before any tick = %v, want (UNKNOWN, 0.0)", result)
	}
}

func TestDetectorWarm(t *testing.T) {
	detector, clock, events := newTestDetector(t)

	warm := make([]Sample, 30)
	for i := range warm {
		warm[i] = Sample{
			Timestamp: clock.now.Add(time.Duration(i-len(warm)) * 50 * time.Millisecond),
			Acc:       Vec3{Y: 9.8},
		}
	}
	detector.Warm(warm)

	if len(*events) != 0 {
		t.Fatalf("events after Warm() = %d, want 0 (warming never ticks)", len(*events))
	}
	if detector.BufferLen() != 30 {
		t.Errorf("BufferLen() after Warm() = %d, want 30", detector.BufferLen())
	}

	// The first live ingestion ticks over the preloaded window
	detector.Ingest(Sample{Acc: Vec3{Y: 9.8}})

	if len(*events) != 1 {
		t.Fatalf("events after first live sample = %d, want 1", len(*events))
	}

	tick := (*events)[0]
	if tick.Features.SampleCount != 31 {
		t.Errorf("SampleCount = %d, want 31", tick.Features.SampleCount)
	}
	if tick.Movement != Stationary {
		t.Errorf("movement = %v, want %v", tick.Movement, Stationary)
	}
}
