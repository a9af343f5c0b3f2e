package episode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/stridelabs/stride-platform/internal/motion"
	"github.com/stridelabs/stride-platform/pkg/config"
	"github.com/stridelabs/stride-platform/pkg/mqtt"
	"github.com/stridelabs/stride-platform/pkg/ontology"
	"github.com/stridelabs/stride-platform/pkg/postgres"
)

// Agent turns the stream of per-window movement classifications into
// movement episodes: contiguous spans of one movement type with start,
// end, duration and a feature centroid. Episodes and the underlying
// events are archived in PostgreSQL; lifecycle events are published as
// JSON-LD documents.
type Agent struct {
	mqtt    mqtt.Client
	pg      postgres.Client
	storage *Storage
	cfg     *config.Config
	logger  *slog.Logger

	mu             sync.Mutex
	episodes       map[string]*openEpisode
	streaks        map[string]streak
	lastTransition map[string]time.Time
}

// openEpisode accumulates statistics for an episode in progress
type openEpisode struct {
	id            uuid.UUID
	device        string
	movement      motion.MovementType
	startedAt     time.Time
	lastEventAt   time.Time
	eventCount    int
	confidenceSum float64
	featureSum    []float64
	daylight      Daylight
	doc           *ontology.MovementEpisode
}

// streak counts consecutive identical classifications per device
type streak struct {
	movement motion.MovementType
	count    int
}

// contextMessage is the movement context document published by the
// motion agent
type contextMessage struct {
	EventID    string               `json:"event_id"`
	Device     string               `json:"device"`
	Movement   motion.MovementType  `json:"movement"`
	Confidence float64              `json:"confidence"`
	Features   motion.FeatureVector `json:"features"`
	Timestamp  string               `json:"timestamp"`
}

// NewAgent creates a new episode agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, pgClient postgres.Client, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:           mqttClient,
		pg:             pgClient,
		storage:        NewStorage(pgClient, logger),
		cfg:            cfg,
		logger:         logger,
		episodes:       make(map[string]*openEpisode),
		streaks:        make(map[string]streak),
		lastTransition: make(map[string]time.Time),
	}
}

// Storage exposes the agent's archive for API consumers
func (a *Agent) Storage() *Storage {
	return a.storage
}

// Start starts the episode agent and begins processing movement context
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting episode agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress())

	// Connect to MQTT broker
	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Connect to PostgreSQL and prepare the archive tables
	if err := a.pg.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := a.storage.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare archive schema: %w", err)
	}

	// A crash bypasses Stop, so episodes may have been left open
	recovered, err := a.storage.RecoverDanglingEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover dangling episodes: %w", err)
	}
	if recovered > 0 {
		a.logger.Info("Closed episodes left open by a previous run", "count", recovered)
	}

	// Subscribe to movement context from all devices
	if err := a.mqtt.Subscribe(mqtt.TopicMovementContext, 0, a.handleContextMessage); err != nil {
		return fmt.Errorf("failed to subscribe to movement context: %w", err)
	}

	a.logger.Info("Episode agent started and ready to receive movement context",
		"topic", mqtt.TopicMovementContext)

	// Block until context is cancelled
	<-ctx.Done()
	a.logger.Info("Episode agent stopping")

	return nil
}

// Stop gracefully stops the episode agent, closing any open episodes
func (a *Agent) Stop() error {
	a.logger.Info("Stopping episode agent")

	// Close open episodes so restarts don't leave dangling spans
	a.mu.Lock()
	open := make([]*openEpisode, 0, len(a.episodes))
	for _, ep := range a.episodes {
		open = append(open, ep)
	}
	a.episodes = make(map[string]*openEpisode)
	a.mu.Unlock()

	ctx := context.Background()
	now := time.Now()
	for _, ep := range open {
		a.closeEpisode(ctx, ep, now)
	}

	a.mqtt.Disconnect()

	if err := a.pg.Disconnect(); err != nil {
		a.logger.Error("Error closing PostgreSQL connection", "error", err)
		return err
	}

	a.logger.Info("Episode agent stopped")
	return nil
}

// handleContextMessage processes one movement classification
func (a *Agent) handleContextMessage(msg mqtt.Message) {
	var cm contextMessage
	if err := json.Unmarshal(msg.Payload(), &cm); err != nil {
		a.logger.Error("Failed to parse movement context", "topic", msg.Topic(), "error", err)
		return
	}

	if cm.Device == "" {
		device, err := mqtt.DeviceFromTopic(msg.Topic())
		if err != nil {
			a.logger.Error("Movement context without device", "topic", msg.Topic(), "error", err)
			return
		}
		cm.Device = device
	}

	at, err := time.Parse(time.RFC3339Nano, cm.Timestamp)
	if err != nil {
		at = time.Now()
	}

	ctx := context.Background()

	// Archive the event regardless of episode lifecycle outcome
	if err := a.storage.ArchiveEvent(ctx, motion.MovementEvent{
		EventID:    cm.EventID,
		Device:     cm.Device,
		Timestamp:  at,
		Movement:   cm.Movement,
		Confidence: cm.Confidence,
		Features:   cm.Features,
	}); err != nil {
		a.logger.Error("Failed to archive movement event",
			"device", cm.Device,
			"error", err)
		// Episode lifecycle continues on archive failure
	}

	a.applyClassification(ctx, cm, at)
}

// applyClassification runs the transition gates and updates the
// per-device episode state. Database and MQTT work happens outside the
// state lock.
func (a *Agent) applyClassification(ctx context.Context, cm contextMessage, at time.Time) {
	a.mu.Lock()

	// Track consecutive identical classifications
	st := a.streaks[cm.Device]
	if st.movement == cm.Movement {
		st.count++
	} else {
		st = streak{movement: cm.Movement, count: 1}
	}
	a.streaks[cm.Device] = st

	current := a.episodes[cm.Device]
	var currentMovement *motion.MovementType
	if current != nil {
		currentMovement = &current.movement
	}
	var lastAt *time.Time
	if t, ok := a.lastTransition[cm.Device]; ok {
		lastAt = &t
	}

	decision := ShouldTransition(currentMovement, lastAt, at, cm.Movement, cm.Confidence, st.count)

	if !decision.Accept {
		if decision.Reason == "maintained" {
			current.accumulate(cm.Confidence, cm.Features, at)
		}
		a.mu.Unlock()

		a.logger.Debug("Episode transition gated",
			"device", cm.Device,
			"movement", cm.Movement,
			"reason", decision.Reason)
		return
	}

	next := a.newEpisode(cm, at)
	a.episodes[cm.Device] = next
	a.lastTransition[cm.Device] = at
	a.mu.Unlock()

	if current != nil {
		a.closeEpisode(ctx, current, at)
	}
	a.persistOpen(ctx, next, decision.Reason)
}

// newEpisode builds the in-memory state and JSON-LD document for an
// episode starting with this classification
func (a *Agent) newEpisode(cm contextMessage, at time.Time) *openEpisode {
	id := uuid.New()
	daylight := ComputeDaylight(at, a.cfg.Latitude, a.cfg.Longitude)

	doc := ontology.NewEpisode(cm.Device, ontology.Movement{
		Type:       "stride:Movement",
		Name:       string(cm.Movement),
		Confidence: cm.Confidence,
	}, at)
	doc.ID = fmt.Sprintf("urn:uuid:%s", id)
	doc.Daylight = &ontology.DaylightContext{
		Type:           "stride:DaylightContext",
		ID:             fmt.Sprintf("urn:uuid:%s", uuid.New()),
		SunAltitude:    daylight.SunAltitude,
		TheoreticalLux: daylight.TheoreticalLux,
		IsDaytime:      daylight.IsDaytime,
	}

	ep := &openEpisode{
		id:        id,
		device:    cm.Device,
		movement:  cm.Movement,
		startedAt: at,
		daylight:  daylight,
		doc:       doc,
	}
	ep.accumulate(cm.Confidence, cm.Features, at)

	return ep
}

// persistOpen stores the new episode and publishes its start event
func (a *Agent) persistOpen(ctx context.Context, ep *openEpisode, reason string) {
	record := &EpisodeRecord{
		ID:             ep.id,
		Device:         ep.device,
		Movement:       ep.movement,
		StartedAt:      ep.startedAt,
		EventCount:     ep.eventCount,
		MeanConfidence: ep.meanConfidence(),
		SunAltitude:    ep.daylight.SunAltitude,
		TheoreticalLux: ep.daylight.TheoreticalLux,
		IsDaytime:      ep.daylight.IsDaytime,
	}

	if err := a.storage.OpenEpisode(ctx, record); err != nil {
		a.logger.Error("Failed to store episode",
			"device", ep.device,
			"episode_id", ep.id,
			"error", err)
	}

	a.publishEpisodeEvent("started", ep.doc)

	a.logger.Info("Episode started",
		"device", ep.device,
		"movement", ep.movement,
		"episode_id", ep.id,
		"reason", reason)
}

// closeEpisode finalizes one episode at the given end time
func (a *Agent) closeEpisode(ctx context.Context, ep *openEpisode, endedAt time.Time) {
	duration := endedAt.Sub(ep.startedAt)
	mean := ep.meanConfidence()

	ended := endedAt
	ep.doc.EndedAt = &ended
	ep.doc.Duration = duration.Round(time.Second).String()
	ep.doc.Movement.Confidence = mean

	jsonld, err := json.Marshal(ep.doc)
	if err != nil {
		a.logger.Error("Failed to marshal episode document",
			"episode_id", ep.id,
			"error", err)
		jsonld = nil
	}

	if err := a.storage.CloseEpisode(ctx, ep.id, endedAt, duration.Seconds(),
		ep.eventCount, mean, ep.centroid(), jsonld); err != nil {
		a.logger.Error("Failed to close episode",
			"device", ep.device,
			"episode_id", ep.id,
			"error", err)
	}

	a.publishEpisodeEvent("ended", ep.doc)

	a.logger.Info("Episode ended",
		"device", ep.device,
		"movement", ep.movement,
		"episode_id", ep.id,
		"duration", duration.Round(time.Second),
		"events", ep.eventCount)
}

// publishEpisodeEvent publishes an episode lifecycle document
func (a *Agent) publishEpisodeEvent(eventType string, doc *ontology.MovementEpisode) {
	payload, err := json.Marshal(doc)
	if err != nil {
		a.logger.Error("Failed to marshal episode event", "type", eventType, "error", err)
		return
	}

	topic := mqtt.EpisodeEventTopic(eventType)
	if err := a.mqtt.Publish(topic, 0, false, payload); err != nil {
		a.logger.Error("Failed to publish episode event",
			"topic", topic,
			"error", err)
	}
}

// accumulate folds one classification into the episode statistics
func (ep *openEpisode) accumulate(confidence float64, features motion.FeatureVector, at time.Time) {
	vec := features.Vector()
	if ep.featureSum == nil {
		ep.featureSum = make([]float64, len(vec))
	}
	for i, v := range vec {
		ep.featureSum[i] += float64(v)
	}

	ep.confidenceSum += confidence
	ep.eventCount++
	ep.lastEventAt = at
}

// meanConfidence returns the average confidence over the episode
func (ep *openEpisode) meanConfidence() float64 {
	if ep.eventCount == 0 {
		return 0
	}
	return ep.confidenceSum / float64(ep.eventCount)
}

// centroid returns the mean feature vector over the episode
func (ep *openEpisode) centroid() pgvector.Vector {
	out := make([]float32, len(ep.featureSum))
	if ep.eventCount > 0 {
		for i, v := range ep.featureSum {
			out[i] = float32(v / float64(ep.eventCount))
		}
	}
	return pgvector.NewVector(out)
}
