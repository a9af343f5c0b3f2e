package motion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stridelabs/stride-platform/pkg/config"
	"github.com/stridelabs/stride-platform/pkg/mqtt"
	"github.com/stridelabs/stride-platform/pkg/redis"
)

// Classification records kept per device for stability analysis
const stabilityHistoryLimit = 20

// Agent receives raw IMU samples over MQTT, runs per-device movement
// detectors and publishes classified movement context
type Agent struct {
	mqtt        mqtt.Client
	redis       redis.Client
	processor   *Processor
	storage     *Storage
	cfg         *config.Config
	logger      *slog.Logger
	timeManager *TimeManager

	mu        sync.Mutex
	detectors map[string]*Detector
	history   map[string][]ClassificationRecord
	listeners []Listener
}

// NewAgent creates a new motion agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, cfg *config.Config, logger *slog.Logger) *Agent {
	timeManager := NewTimeManager(logger)

	processor := NewProcessor(logger, timeManager)
	storage := NewStorage(redisClient, cfg, logger)

	return &Agent{
		mqtt:        mqttClient,
		redis:       redisClient,
		processor:   processor,
		storage:     storage,
		cfg:         cfg,
		logger:      logger,
		timeManager: timeManager,
		detectors:   make(map[string]*Detector),
		history:     make(map[string][]ClassificationRecord),
	}
}

// Subscribe registers a listener invoked with every movement event
// produced by any device detector. Register listeners before calling
// Start.
func (a *Agent) Subscribe(listener Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.listeners = append(a.listeners, listener)
}

// Start starts the motion agent and begins processing IMU samples
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting motion agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress())

	// Connect to MQTT broker
	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Verify Redis connection
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	if err := a.timeManager.ConfigureFromMQTT(a.mqtt); err != nil {
		a.logger.Warn("Failed to subscribe to test mode config", "error", err)
		// Not fatal - continue without test mode support
	}

	// Subscribe to raw IMU sample topics
	for _, topic := range a.cfg.SampleTopics {
		if err := a.mqtt.Subscribe(topic, 0, a.handleSampleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			// Continue subscribing to other topics even if one fails
			continue
		}
	}

	a.logger.Info("Motion agent started and ready to receive samples",
		"subscribed_topics", strings.Join(a.cfg.SampleTopics, ", "))

	// Block until context is cancelled
	<-ctx.Done()
	a.logger.Info("Motion agent stopping")

	return nil
}

// Stop gracefully stops the motion agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping motion agent")

	// Disconnect from MQTT
	a.mqtt.Disconnect()

	// Close Redis connection
	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Motion agent stopped")
	return nil
}

// ForceClassify runs an immediate classification tick for a device,
// bypassing the cadence gate
func (a *Agent) ForceClassify(device string) (ClassificationResult, error) {
	detector, err := a.lookupDetector(device)
	if err != nil {
		return ClassificationResult{}, err
	}

	return detector.ForceClassify(), nil
}

// LastClassification returns the most recent classification for a device
func (a *Agent) LastClassification(device string) (ClassificationResult, error) {
	detector, err := a.lookupDetector(device)
	if err != nil {
		return ClassificationResult{}, err
	}

	return detector.LastClassification(), nil
}

// handleSampleMessage processes incoming raw IMU messages
func (a *Agent) handleSampleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	sampleMsg, err := a.processor.ParseSampleMessage(topic, payload)
	if err != nil {
		a.logger.Error("Failed to parse sample message", "topic", topic, "error", err)
		return
	}

	ctx := context.Background()

	// Store the raw sample in Redis
	if err := a.storage.StoreSample(ctx, sampleMsg, a.processor); err != nil {
		a.logger.Error("Failed to store IMU sample",
			"device", sampleMsg.Device,
			"error", err)
		// Classification continues even when raw sample storage fails
	}

	// Feed the detector; the cadence gate decides whether this
	// ingestion also produces a classification tick
	a.detectorFor(sampleMsg.Device).Ingest(sampleMsg.Sample)
}

// detectorFor returns the detector for a device, creating and warming
// it on first sight. Detectors share the agent's virtual clock.
func (a *Agent) detectorFor(device string) *Detector {
	a.mu.Lock()
	if detector, ok := a.detectors[device]; ok {
		a.mu.Unlock()
		return detector
	}
	a.mu.Unlock()

	// Warming reads Redis, so it runs outside the agent lock;
	// publication is re-checked afterwards
	detector := NewDetector(device, a.cfg, a.timeManager.Now, a.logger)
	detector.Subscribe(a.handleMovementEvent)
	history := a.warmDetector(detector, device)

	a.mu.Lock()
	if existing, ok := a.detectors[device]; ok {
		a.mu.Unlock()
		return existing
	}
	a.detectors[device] = detector
	if len(history) > 0 {
		a.history[device] = history
	}
	a.mu.Unlock()

	a.logger.Info("Created movement detector",
		"device", device,
		"warmed_samples", detector.BufferLen(),
		"warmed_history", len(history))

	return detector
}

// warmDetector rebuilds the sample window and classification history
// from Redis so a restart does not begin from an empty state. Only
// samples still inside the window's time coverage are replayed.
func (a *Agent) warmDetector(detector *Detector, device string) []ClassificationRecord {
	ctx := context.Background()
	now := a.timeManager.Now()

	coverage := time.Duration(a.cfg.BufferCapacity) * time.Second / time.Duration(a.cfg.SamplingRateHz)

	samples, err := a.storage.RecentSamples(ctx, device, now.Add(-coverage), now)
	if err != nil {
		a.logger.Warn("Failed to warm detector from stored samples", "device", device, "error", err)
	} else if len(samples) > 0 {
		detector.Warm(samples)
	}

	events, err := a.storage.RecentEvents(ctx, device, stabilityHistoryLimit)
	if err != nil {
		a.logger.Warn("Failed to load classification history", "device", device, "error", err)
		return nil
	}

	// Stored events are most recent first; history runs oldest first
	records := make([]ClassificationRecord, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		records = append(records, ClassificationRecord{
			Timestamp:  events[i].Timestamp,
			Movement:   events[i].Movement,
			Confidence: events[i].Confidence,
		})
	}

	return records
}

func (a *Agent) lookupDetector(device string) (*Detector, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	detector, ok := a.detectors[device]
	if !ok {
		return nil, fmt.Errorf("no detector for device %s", device)
	}

	return detector, nil
}

// handleMovementEvent runs once per classification tick: the event is
// persisted, the movement context is published, and external listeners
// are notified
func (a *Agent) handleMovementEvent(event MovementEvent) {
	ctx := context.Background()

	stability := a.recordClassification(event)

	if err := a.storage.StoreMovementEvent(ctx, event); err != nil {
		a.logger.Error("Failed to store movement event",
			"device", event.Device,
			"error", err)
		// Continue to publish even if storage fails
		// Downstream consumers can still react
	}

	if err := a.publishContext(ctx, event, stability); err != nil {
		a.logger.Error("Failed to publish movement context",
			"device", event.Device,
			"error", err)
	}

	for _, listener := range a.snapshotListeners() {
		listener(event)
	}

	a.logger.Info("Movement classified",
		"device", event.Device,
		"movement", event.Movement,
		"confidence", event.Confidence)
}

// recordClassification appends the event to the per-device stability
// history and computes the current stability metrics
func (a *Agent) recordClassification(event MovementEvent) StabilityResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := append(a.history[event.Device], ClassificationRecord{
		Timestamp:  event.Timestamp,
		Movement:   event.Movement,
		Confidence: event.Confidence,
	})
	if len(records) > stabilityHistoryLimit {
		records = records[len(records)-stabilityHistoryLimit:]
	}
	a.history[event.Device] = records

	return ComputeClassificationStability(records)
}

// publishContext publishes the movement context document and caches it
// in Redis for late joiners
func (a *Agent) publishContext(ctx context.Context, event MovementEvent, stability StabilityResult) error {
	payload, err := a.processor.BuildContextPayload(event, stability)
	if err != nil {
		return err
	}

	topic := mqtt.MovementContextTopic(event.Device)
	if err := a.mqtt.Publish(topic, 0, false, payload); err != nil {
		return fmt.Errorf("failed to publish movement context: %w", err)
	}

	if err := a.storage.StoreMovementContext(ctx, event.Device, payload); err != nil {
		a.logger.Warn("Failed to cache movement context", "device", event.Device, "error", err)
	}

	a.logger.Debug("Published movement context", "topic", topic)

	return nil
}

func (a *Agent) snapshotListeners() []Listener {
	a.mu.Lock()
	defer a.mu.Unlock()

	listeners := make([]Listener, len(a.listeners))
	copy(listeners, a.listeners)
	return listeners
}
