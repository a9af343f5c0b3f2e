package motion

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stridelabs/stride-platform/pkg/config"
)

// Listener receives movement events produced by a detector
type Listener func(event MovementEvent)

// Detector drives classification for a single device. It feeds samples
// into the buffer at sensor arrival rate and runs feature extraction
// plus classification at a fixed cadence, checked on every ingestion
// call. The last classification and its timestamp are fields owned by
// the detector instance, scoped to one detection session.
type Detector struct {
	device           string
	samplingRateHz   int
	classifyInterval time.Duration
	classifier       *Classifier
	now              func() time.Time
	logger           *slog.Logger

	mu               sync.Mutex
	buffer           *SampleBuffer
	lastClassifiedAt time.Time
	lastResult       ClassificationResult
	listeners        []Listener
}

// NewDetector creates a detector for one device. The clock is
// injectable so tests and virtual-time runs can drive the cadence;
// pass nil for wall-clock time.
func NewDetector(device string, cfg *config.Config, clock func() time.Time, logger *slog.Logger) *Detector {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		device:           device,
		samplingRateHz:   cfg.SamplingRateHz,
		classifyInterval: cfg.ClassifyInterval(),
		classifier:       NewClassifier(cfg.MinSamples),
		now:              clock,
		logger:           logger,
		buffer:           NewSampleBuffer(cfg.BufferCapacity),
		lastResult:       ClassificationResult{Movement: Unknown, Confidence: 0.0},
	}
}

// Device returns the device this detector classifies for
func (d *Detector) Device() string {
	return d.device
}

// Subscribe registers a listener invoked on every classification tick
func (d *Detector) Subscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners = append(d.listeners, listener)
}

// LastClassification returns the most recent classification result for
// this detection session. Before the first tick it is (UNKNOWN, 0.0).
func (d *Detector) LastClassification() ClassificationResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastResult
}

// BufferLen returns the current number of buffered samples
func (d *Detector) BufferLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.buffer.Len()
}

// Warm preloads the sliding window without running a classification
// tick. Used to rebuild detector state from persisted samples after a
// restart.
func (d *Detector) Warm(samples []Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range samples {
		d.buffer.Add(s)
	}
}

// Ingest appends a sample to the sliding window and runs a
// classification tick if the classification interval has elapsed since
// the previous tick. Ingestion itself always succeeds; below-interval
// calls only grow the window.
func (d *Detector) Ingest(s Sample) {
	d.mu.Lock()

	d.buffer.Add(s)

	now := d.now()
	if now.Sub(d.lastClassifiedAt) < d.classifyInterval {
		d.mu.Unlock()
		return
	}

	event := d.classifyLocked(now, s)
	listeners := d.snapshotListeners()
	d.mu.Unlock()

	// Listeners run outside the detector lock so they may call back
	// into the detector
	notify(listeners, event)
}

// ForceClassify runs a classification tick immediately, bypassing the
// cadence gate. Listeners are notified as on a normal tick and the
// cadence timer is reset.
func (d *Detector) ForceClassify() ClassificationResult {
	d.mu.Lock()

	latest, _ := d.buffer.Latest()
	event := d.classifyLocked(d.now(), latest)
	listeners := d.snapshotListeners()
	d.mu.Unlock()

	notify(listeners, event)

	return ClassificationResult{Movement: event.Movement, Confidence: event.Confidence}
}

// classifyLocked runs one tick over the current buffer snapshot and
// assembles the movement event. Callers must hold the mutex.
func (d *Detector) classifyLocked(at time.Time, latest Sample) MovementEvent {
	samples := d.buffer.Snapshot()
	features := ExtractFeatures(samples, d.samplingRateHz)
	result := d.classifier.Classify(features)

	d.lastResult = result
	d.lastClassifiedAt = at

	d.logger.Debug("Classified movement window",
		"device", d.device,
		"movement", result.Movement,
		"confidence", result.Confidence,
		"samples", features.SampleCount)

	return MovementEvent{
		EventID:    uuid.New().String(),
		Device:     d.device,
		Timestamp:  at,
		Movement:   result.Movement,
		Confidence: result.Confidence,
		Features:   features,
		Acc:        latest.Acc,
		Gyro:       latest.Gyro,
	}
}

func (d *Detector) snapshotListeners() []Listener {
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	return listeners
}

func notify(listeners []Listener, event MovementEvent) {
	for _, listener := range listeners {
		listener(event)
	}
}
