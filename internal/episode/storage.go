package episode

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/stridelabs/stride-platform/internal/motion"
	"github.com/stridelabs/stride-platform/pkg/postgres"
)

// Storage persists movement events and episodes to PostgreSQL. Feature
// vectors and episode centroids are stored as pgvector columns so
// similar movement patterns can be found with vector similarity search.
type Storage struct {
	pgClient postgres.Client
	logger   *slog.Logger
}

// NewStorage creates a new episode storage instance
func NewStorage(pgClient postgres.Client, logger *slog.Logger) *Storage {
	return &Storage{
		pgClient: pgClient,
		logger:   logger,
	}
}

// ArchivedEvent is one movement event row from the archive
type ArchivedEvent struct {
	ID         uuid.UUID           `json:"id"`
	Device     string              `json:"device"`
	Movement   motion.MovementType `json:"movement"`
	Confidence float64             `json:"confidence"`
	Features   pgvector.Vector     `json:"features"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// EpisodeRecord is one persisted movement episode
type EpisodeRecord struct {
	ID              uuid.UUID           `json:"id"`
	Device          string              `json:"device"`
	Movement        motion.MovementType `json:"movement"`
	StartedAt       time.Time           `json:"started_at"`
	EndedAt         *time.Time          `json:"ended_at,omitempty"`
	DurationSeconds *float64            `json:"duration_seconds,omitempty"`
	EventCount      int                 `json:"event_count"`
	MeanConfidence  float64             `json:"mean_confidence"`
	FeatureCentroid pgvector.Vector     `json:"feature_centroid"`
	SunAltitude     float64             `json:"sun_altitude"`
	TheoreticalLux  float64             `json:"theoretical_lux"`
	IsDaytime       bool                `json:"is_daytime"`
}

// SimilarEpisode pairs an episode with its vector distance to the
// query centroid (smaller is more similar)
type SimilarEpisode struct {
	EpisodeRecord
	Distance float64 `json:"distance"`
}

// schemaStatements creates the archive tables on first run. The vector
// extension must be available in the target database.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS movement_events (
		id UUID PRIMARY KEY,
		device TEXT NOT NULL,
		movement TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		features vector(9),
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movement_events_device_time
		ON movement_events (device, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS movement_episodes (
		id UUID PRIMARY KEY,
		device TEXT NOT NULL,
		movement TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		duration_seconds DOUBLE PRECISION,
		event_count INTEGER NOT NULL DEFAULT 0,
		mean_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		feature_centroid vector(9),
		sun_altitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		theoretical_lux DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_daytime BOOLEAN NOT NULL DEFAULT false,
		jsonld JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movement_episodes_device_time
		ON movement_episodes (device, started_at DESC)`,
}

// EnsureSchema creates the movement archive tables if they don't
// exist. The statements run in one transaction so a failed setup
// leaves no partial schema behind.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	err := s.pgClient.Transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to ensure schema: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Movement archive schema ready")

	return nil
}

// RecoverDanglingEpisodes closes episodes left open by a previous run.
// The last archived event for the device bounds the end time; an
// episode with no events closes at its own start.
func (s *Storage) RecoverDanglingEpisodes(ctx context.Context) (int, error) {
	var dangling int

	row := s.pgClient.QueryRow(ctx, `SELECT COUNT(*) FROM movement_episodes WHERE ended_at IS NULL`)
	if err := row.Scan(&dangling); err != nil {
		return 0, fmt.Errorf("failed to count dangling episodes: %w", err)
	}
	if dangling == 0 {
		return 0, nil
	}

	query := `
		UPDATE movement_episodes e
		SET ended_at = bound.ended_at,
		    duration_seconds = EXTRACT(EPOCH FROM (bound.ended_at - e.started_at))
		FROM (
			SELECT e2.id, COALESCE(
				(SELECT max(m.occurred_at) FROM movement_events m
				 WHERE m.device = e2.device AND m.occurred_at >= e2.started_at),
				e2.started_at) AS ended_at
			FROM movement_episodes e2
			WHERE e2.ended_at IS NULL
		) AS bound
		WHERE e.id = bound.id
	`

	if _, err := s.pgClient.Exec(ctx, query); err != nil {
		return 0, fmt.Errorf("failed to close dangling episodes: %w", err)
	}

	return dangling, nil
}

// ArchiveEvent stores one movement event in the archive. Replayed
// events with a known ID are ignored.
func (s *Storage) ArchiveEvent(ctx context.Context, event motion.MovementEvent) error {
	id, err := uuid.Parse(event.EventID)
	if err != nil {
		return fmt.Errorf("invalid event ID %q: %w", event.EventID, err)
	}

	query := `
		INSERT INTO movement_events (id, device, movement, confidence, features, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = s.pgClient.Exec(ctx, query,
		id,
		event.Device,
		string(event.Movement),
		event.Confidence,
		pgvector.NewVector(event.Features.Vector()),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert movement event: %w", err)
	}

	return nil
}

// OpenEpisode inserts a newly started episode
func (s *Storage) OpenEpisode(ctx context.Context, rec *EpisodeRecord) error {
	query := `
		INSERT INTO movement_episodes (
			id, device, movement, started_at, event_count, mean_confidence,
			sun_altitude, theoretical_lux, is_daytime
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pgClient.Exec(ctx, query,
		rec.ID,
		rec.Device,
		string(rec.Movement),
		rec.StartedAt,
		rec.EventCount,
		rec.MeanConfidence,
		rec.SunAltitude,
		rec.TheoreticalLux,
		rec.IsDaytime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}

	return nil
}

// CloseEpisode finalizes an episode with its end time and accumulated
// statistics
func (s *Storage) CloseEpisode(
	ctx context.Context,
	id uuid.UUID,
	endedAt time.Time,
	durationSeconds float64,
	eventCount int,
	meanConfidence float64,
	centroid pgvector.Vector,
	jsonld []byte,
) error {
	query := `
		UPDATE movement_episodes
		SET
			ended_at = $2,
			duration_seconds = $3,
			event_count = $4,
			mean_confidence = $5,
			feature_centroid = $6,
			jsonld = $7
		WHERE id = $1
	`

	result, err := s.pgClient.Exec(ctx, query,
		id,
		endedAt,
		durationSeconds,
		eventCount,
		meanConfidence,
		centroid,
		jsonld,
	)
	if err != nil {
		return fmt.Errorf("failed to close episode: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("episode not found: %s", id)
	}

	return nil
}

// RecentEvents retrieves archived movement events, newest first. An
// empty device returns events for all devices.
func (s *Storage) RecentEvents(ctx context.Context, device string, limit int) ([]ArchivedEvent, error) {
	query := `
		SELECT id, device, movement, confidence, features, occurred_at
		FROM movement_events
	`

	var args []interface{}

	if device != "" {
		query += " WHERE device = $1"
		args = append(args, device)
	}

	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.pgClient.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movement events: %w", err)
	}
	defer rows.Close()

	var events []ArchivedEvent

	for rows.Next() {
		var ev ArchivedEvent
		var movement string

		err := rows.Scan(
			&ev.ID,
			&ev.Device,
			&movement,
			&ev.Confidence,
			&ev.Features,
			&ev.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement event: %w", err)
		}

		ev.Movement = motion.MovementType(movement)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movement events: %w", err)
	}

	return events, nil
}

// EpisodesBetween retrieves episodes that started within a time range,
// newest first. An empty device returns episodes for all devices.
func (s *Storage) EpisodesBetween(ctx context.Context, device string, from, to time.Time, limit int) ([]EpisodeRecord, error) {
	query := `
		SELECT id, device, movement, started_at, ended_at, duration_seconds,
		       event_count, mean_confidence, feature_centroid::text,
		       sun_altitude, theoretical_lux, is_daytime
		FROM movement_episodes
		WHERE started_at >= $1 AND started_at < $2
	`

	args := []interface{}{from, to}

	if device != "" {
		query += " AND device = $3"
		args = append(args, device)
	}

	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.pgClient.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []EpisodeRecord

	for rows.Next() {
		ep, err := scanEpisode(rows, nil)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, *ep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episodes: %w", err)
	}

	return episodes, nil
}

// FindSimilarEpisodes finds closed episodes whose feature centroid is
// nearest to the query vector, most similar first
func (s *Storage) FindSimilarEpisodes(ctx context.Context, centroid pgvector.Vector, limit int) ([]SimilarEpisode, error) {
	query := `
		SELECT id, device, movement, started_at, ended_at, duration_seconds,
		       event_count, mean_confidence, feature_centroid::text,
		       sun_altitude, theoretical_lux, is_daytime,
		       feature_centroid <=> $1 AS distance
		FROM movement_episodes
		WHERE feature_centroid IS NOT NULL
		ORDER BY feature_centroid <=> $1
		LIMIT $2
	`

	rows, err := s.pgClient.Query(ctx, query, centroid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar episodes: %w", err)
	}
	defer rows.Close()

	var episodes []SimilarEpisode

	for rows.Next() {
		var similar SimilarEpisode

		ep, err := scanEpisode(rows, &similar.Distance)
		if err != nil {
			return nil, err
		}
		similar.EpisodeRecord = *ep

		episodes = append(episodes, similar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating similar episodes: %w", err)
	}

	return episodes, nil
}

// scanEpisode reads one episode row, appending a distance column when
// requested. The centroid arrives as text because open episodes hold
// NULL there.
func scanEpisode(rows *sql.Rows, distance *float64) (*EpisodeRecord, error) {
	var ep EpisodeRecord
	var movement string
	var endedAt sql.NullTime
	var duration sql.NullFloat64
	var centroid sql.NullString

	fields := []interface{}{
		&ep.ID,
		&ep.Device,
		&movement,
		&ep.StartedAt,
		&endedAt,
		&duration,
		&ep.EventCount,
		&ep.MeanConfidence,
		&centroid,
		&ep.SunAltitude,
		&ep.TheoreticalLux,
		&ep.IsDaytime,
	}
	if distance != nil {
		fields = append(fields, distance)
	}

	if err := rows.Scan(fields...); err != nil {
		return nil, fmt.Errorf("failed to scan episode: %w", err)
	}

	ep.Movement = motion.MovementType(movement)
	if endedAt.Valid {
		t := endedAt.Time
		ep.EndedAt = &t
	}
	if duration.Valid {
		d := duration.Float64
		ep.DurationSeconds = &d
	}
	if centroid.Valid {
		if err := ep.FeatureCentroid.Parse(centroid.String); err != nil {
			return nil, fmt.Errorf("failed to parse feature centroid: %w", err)
		}
	}

	return &ep, nil
}
