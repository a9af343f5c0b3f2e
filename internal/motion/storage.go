package motion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stridelabs/stride-platform/pkg/config"
	"github.com/stridelabs/stride-platform/pkg/redis"
)

const (
	// TTL for sensor and movement data (24 hours as per redis-schema.md)
	sensorDataTTL = 24 * time.Hour

	// Max age for sorted set entries (24 hours in milliseconds)
	maxSampleAge = 24 * 60 * 60 * 1000
)

// Storage handles Redis storage for raw IMU samples and movement events
type Storage struct {
	redis             redis.Client
	eventHistoryLimit int
	logger            *slog.Logger
}

// NewStorage creates a new storage handler
func NewStorage(redisClient redis.Client, cfg *config.Config, logger *slog.Logger) *Storage {
	return &Storage{
		redis:             redisClient,
		eventHistoryLimit: cfg.EventHistoryLimit,
		logger:            logger,
	}
}

// StoreSample stores one raw IMU sample using sorted set + metadata hash
// Pattern from redis-schema.md:
// - sensor:imu:{device} (sorted set scored by collection time)
// - meta:imu:{device} (hash with last_update)
func (s *Storage) StoreSample(ctx context.Context, msg *SampleMessage, processor *Processor) error {
	key := redis.IMUSampleKey(msg.Device)
	metaKey := redis.IMUMetaKey(msg.Device)

	doc := processor.BuildSampleDocument(msg)

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal sample document: %w", err)
	}

	// Add to sorted set with timestamp as score
	score := float64(msg.CollectedAt)
	if err := s.redis.ZAdd(ctx, key, score, jsonData); err != nil {
		return fmt.Errorf("failed to add sample to sorted set: %w", err)
	}

	// Update metadata
	if err := s.redis.HSet(ctx, metaKey, "last_update", strconv.FormatInt(msg.CollectedAt, 10)); err != nil {
		s.logger.Warn("Failed to update sample metadata", "device", msg.Device, "error", err)
		// Don't fail the entire operation if metadata update fails
	}
	if err := s.redis.Expire(ctx, metaKey, sensorDataTTL); err != nil {
		s.logger.Warn("Failed to set TTL on sample metadata", "device", msg.Device, "error", err)
	}

	// Clean old entries (older than 24 hours)
	maxAgeTimestamp := msg.CollectedAt - maxSampleAge
	if err := s.redis.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(maxAgeTimestamp, 10)); err != nil {
		s.logger.Warn("Failed to clean old samples", "device", msg.Device, "error", err)
	}

	// Set TTL
	if err := s.redis.Expire(ctx, key, sensorDataTTL); err != nil {
		return fmt.Errorf("failed to set TTL on sample data: %w", err)
	}

	// Log buffer size
	count, err := s.redis.ZCard(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to get sample buffer size", "device", msg.Device, "error", err)
	} else {
		s.logger.Debug("Stored IMU sample", "device", msg.Device, "buffer_size", count)
	}

	return nil
}

// StoreMovementEvent persists one classification event: the current
// state hash is updated and the event is prepended to the bounded
// history list (most recent first).
// Pattern from redis-schema.md:
// - movement:state:{device} (hash)
// - movement:events:{device} (list, trimmed to the history limit)
func (s *Storage) StoreMovementEvent(ctx context.Context, event MovementEvent) error {
	stateKey := redis.MovementStateKey(event.Device)
	eventsKey := redis.MovementEventsKey(event.Device)

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal movement event: %w", err)
	}

	stateFields := map[string]string{
		"movement":   string(event.Movement),
		"confidence": strconv.FormatFloat(event.Confidence, 'f', -1, 64),
		"event_id":   event.EventID,
		"updated_at": strconv.FormatInt(event.Timestamp.UnixMilli(), 10),
	}
	for field, value := range stateFields {
		if err := s.redis.HSet(ctx, stateKey, field, value); err != nil {
			return fmt.Errorf("failed to update movement state: %w", err)
		}
	}
	if err := s.redis.Expire(ctx, stateKey, sensorDataTTL); err != nil {
		s.logger.Warn("Failed to set TTL on movement state", "device", event.Device, "error", err)
	}

	if err := s.redis.LPush(ctx, eventsKey, jsonData); err != nil {
		return fmt.Errorf("failed to push movement event: %w", err)
	}

	// Trim to the bounded history size
	if err := s.redis.LTrim(ctx, eventsKey, 0, int64(s.eventHistoryLimit-1)); err != nil {
		s.logger.Warn("Failed to trim movement events", "device", event.Device, "error", err)
	}
	if err := s.redis.Expire(ctx, eventsKey, sensorDataTTL); err != nil {
		s.logger.Warn("Failed to set TTL on movement events", "device", event.Device, "error", err)
	}

	// Log history size
	count, err := s.redis.LLen(ctx, eventsKey)
	if err != nil {
		s.logger.Warn("Failed to get event history size", "device", event.Device, "error", err)
	} else {
		s.logger.Debug("Stored movement event",
			"device", event.Device,
			"movement", event.Movement,
			"history_size", count)
	}

	return nil
}

// RecentSamples reads back samples collected between since and until,
// ordered oldest first. Used to rebuild a detector window after a
// restart.
func (s *Storage) RecentSamples(ctx context.Context, device string, since, until time.Time) ([]Sample, error) {
	members, err := s.redis.ZRangeByScoreWithScores(ctx, redis.IMUSampleKey(device),
		float64(since.UnixMilli()), float64(until.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	samples := make([]Sample, 0, len(members))
	for _, m := range members {
		var doc SampleDocument
		if err := json.Unmarshal([]byte(m.Member), &doc); err != nil {
			s.logger.Warn("Skipping malformed sample", "device", device, "error", err)
			continue
		}
		if len(doc.Acc) != 3 || len(doc.Gyro) != 3 {
			s.logger.Warn("Skipping sample with truncated readings", "device", device)
			continue
		}

		timestamp, err := time.Parse(time.RFC3339Nano, doc.Timestamp)
		if err != nil {
			timestamp = time.UnixMilli(int64(m.Score))
		}

		samples = append(samples, Sample{
			Timestamp: timestamp,
			Acc:       Vec3{X: doc.Acc[0], Y: doc.Acc[1], Z: doc.Acc[2]},
			Gyro:      Vec3{X: doc.Gyro[0], Y: doc.Gyro[1], Z: doc.Gyro[2]},
		})
	}

	return samples, nil
}

// RecentEvents returns up to limit stored movement events for a
// device, most recent first
func (s *Storage) RecentEvents(ctx context.Context, device string, limit int) ([]MovementEvent, error) {
	if limit < 1 || limit > s.eventHistoryLimit {
		limit = s.eventHistoryLimit
	}

	values, err := s.redis.LRange(ctx, redis.MovementEventsKey(device), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read movement events: %w", err)
	}

	events := make([]MovementEvent, 0, len(values))
	for _, v := range values {
		var event MovementEvent
		if err := json.Unmarshal([]byte(v), &event); err != nil {
			s.logger.Warn("Skipping malformed movement event", "device", device, "error", err)
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// StoreMovementContext caches the latest published context document
// Pattern: movement:context:{device} (string)
func (s *Storage) StoreMovementContext(ctx context.Context, device string, payload []byte) error {
	key := redis.MovementContextKey(device)

	if err := s.redis.Set(ctx, key, payload, sensorDataTTL); err != nil {
		return fmt.Errorf("failed to store movement context: %w", err)
	}

	return nil
}
