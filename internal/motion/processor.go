package motion

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Processor handles parsing of raw IMU sample messages and building of
// outbound payloads
type Processor struct {
	logger      *slog.Logger
	timeManager *TimeManager
}

// NewProcessor creates a new sample message processor
func NewProcessor(logger *slog.Logger, timeManager *TimeManager) *Processor {
	return &Processor{
		logger:      logger,
		timeManager: timeManager,
	}
}

// SampleMessage is a parsed IMU sample with routing metadata
type SampleMessage struct {
	Device        string
	OriginalTopic string
	Sample        Sample
	CollectedAt   int64 // Unix milliseconds
}

// SampleDocument is the stored form of one IMU sample
type SampleDocument struct {
	Timestamp   string    `json:"timestamp"`
	Acc         []float64 `json:"acc"`
	Gyro        []float64 `json:"gyro"`
	CollectedAt int64     `json:"collected_at"`
}

// ParseSampleMessage parses an MQTT message into a sample message.
// Topic pattern: motion/raw/imu/{device}. The payload carries the
// accelerometer and gyroscope readings as 3-element [x, y, z] arrays:
//
//	{"timestamp": 1719403000123, "acc": [0.1, 9.8, 0.2], "gyro": [0.01, 0.02, 0.005]}
func (p *Processor) ParseSampleMessage(topic string, payload []byte) (*SampleMessage, error) {
	// Parse topic to extract the device
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		p.logger.Warn("Invalid topic format", "topic", topic)
		return nil, fmt.Errorf("invalid topic format: %s (expected at least 4 parts)", topic)
	}

	device := parts[3]

	var rawData map[string]interface{}
	if err := json.Unmarshal(payload, &rawData); err != nil {
		p.logger.Error("Failed to parse JSON payload", "topic", topic, "error", err)
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	// Extract data field (messages may be wrapped in {"data": {...}})
	data, ok := rawData["data"].(map[string]interface{})
	if !ok {
		data = rawData
	}

	acc, err := parseVec3(data["acc"])
	if err != nil {
		return nil, fmt.Errorf("invalid acc reading: %w", err)
	}

	gyro, err := parseVec3(data["gyro"])
	if err != nil {
		return nil, fmt.Errorf("invalid gyro reading: %w", err)
	}

	now := p.timeManager.Now()

	// Sensor-side timestamps arrive as epoch milliseconds; fall back
	// to arrival time when absent
	timestamp := now
	if millis, ok := data["timestamp"].(float64); ok {
		timestamp = time.UnixMilli(int64(millis))
	}

	msg := &SampleMessage{
		Device:        device,
		OriginalTopic: topic,
		Sample: Sample{
			Timestamp: timestamp,
			Acc:       acc,
			Gyro:      gyro,
		},
		CollectedAt: now.UnixMilli(),
	}

	p.logger.Debug("Parsed IMU sample", "device", device, "topic", topic)

	return msg, nil
}

// parseVec3 converts a JSON [x, y, z] array into a Vec3
func parseVec3(value interface{}) (Vec3, error) {
	arr, ok := value.([]interface{})
	if !ok {
		return Vec3{}, fmt.Errorf("expected 3-element array, got %T", value)
	}
	if len(arr) != 3 {
		return Vec3{}, fmt.Errorf("expected 3 components, got %d", len(arr))
	}

	components := make([]float64, 3)
	for i, c := range arr {
		f, ok := c.(float64)
		if !ok {
			return Vec3{}, fmt.Errorf("component %d is not a number: %v", i, c)
		}
		components[i] = f
	}

	return Vec3{X: components[0], Y: components[1], Z: components[2]}, nil
}

// BuildSampleDocument converts a sample message to its stored form
func (p *Processor) BuildSampleDocument(msg *SampleMessage) *SampleDocument {
	return &SampleDocument{
		Timestamp:   msg.Sample.Timestamp.Format(time.RFC3339Nano),
		Acc:         []float64{msg.Sample.Acc.X, msg.Sample.Acc.Y, msg.Sample.Acc.Z},
		Gyro:        []float64{msg.Sample.Gyro.X, msg.Sample.Gyro.Y, msg.Sample.Gyro.Z},
		CollectedAt: msg.CollectedAt,
	}
}

// BuildContextPayload creates the movement context document published
// to MQTT after each classification tick
func (p *Processor) BuildContextPayload(event MovementEvent, stability StabilityResult) ([]byte, error) {
	payload := map[string]interface{}{
		"event_id":           event.EventID,
		"device":             event.Device,
		"movement":           event.Movement,
		"movement_label":     event.Movement.DisplayLabel(),
		"confidence":         event.Confidence,
		"confidence_percent": ConfidencePercent(event.Confidence),
		"features":           event.Features,
		"stability": map[string]interface{}{
			"factor":         stability.StabilityFactor,
			"oscillations":   stability.OscillationCount,
			"should_dampen":  stability.ShouldDampen,
			"recommendation": stability.Recommendation,
		},
		"timestamp":    event.Timestamp.Format(time.RFC3339Nano),
		"collected_at": event.Timestamp.UnixMilli(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal movement context: %w", err)
	}

	return data, nil
}
