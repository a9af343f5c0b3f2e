package episode

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelabs/stride-platform/internal/motion"
)

// setupTestStorage creates a storage instance backed by a real database.
// Requires a PostgreSQL instance with the pgvector extension.
func setupTestStorage(t *testing.T) *Storage {
	// This is a placeholder - in real tests, you would:
	// 1. Use a test PostgreSQL instance (e.g., via testcontainers)
	// 2. Call EnsureSchema to create the archive tables
	// 3. Return the storage wired to that connection
	t.Skip("Integration test - requires PostgreSQL with pgvector")
	return nil
}

func TestArchiveAndListEvents(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-1 * time.Minute)

	events := []motion.MovementEvent{
		{
			EventID:    uuid.New().String(),
			Device:     "watch-01",
			Timestamp:  base,
			Movement:   motion.WalkingStraight,
			Confidence: 0.92,
			Features:   makeStorageFeatures(2.0),
		},
		{
			EventID:    uuid.New().String(),
			Device:     "watch-01",
			Timestamp:  base.Add(5 * time.Second),
			Movement:   motion.Stationary,
			Confidence: 0.9,
			Features:   makeStorageFeatures(0.2),
		},
	}

	for _, ev := range events {
		err := storage.ArchiveEvent(ctx, ev)
		require.NoError(t, err)
	}

	// Replaying an event with a known ID must not duplicate it
	err := storage.ArchiveEvent(ctx, events[0])
	require.NoError(t, err)

	archived, err := storage.RecentEvents(ctx, "watch-01", 10)
	require.NoError(t, err)
	require.Len(t, archived, 2)

	// Newest first
	assert.Equal(t, motion.Stationary, archived[0].Movement)
	assert.Equal(t, motion.WalkingStraight, archived[1].Movement)
	assert.Equal(t, 0.92, archived[1].Confidence)
	assert.Len(t, archived[1].Features.Slice(), 9)
}

func TestOpenAndCloseEpisode(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	started := time.Now().Add(-30 * time.Second)

	rec := &EpisodeRecord{
		ID:             uuid.New(),
		Device:         "watch-01",
		Movement:       motion.WalkingStraight,
		StartedAt:      started,
		EventCount:     1,
		MeanConfidence: 0.92,
		SunAltitude:    35.2,
		TheoreticalLux: 40000,
		IsDaytime:      true,
	}

	err := storage.OpenEpisode(ctx, rec)
	require.NoError(t, err)

	endedAt := started.Add(25 * time.Second)
	centroid := pgvector.NewVector(makeStorageFeatures(2.0).Vector())
	jsonld, err := json.Marshal(map[string]interface{}{"@id": "urn:uuid:" + rec.ID.String()})
	require.NoError(t, err)

	err = storage.CloseEpisode(ctx, rec.ID, endedAt, 25.0, 12, 0.88, centroid, jsonld)
	require.NoError(t, err)

	episodes, err := storage.EpisodesBetween(ctx, "watch-01", started.Add(-time.Minute), endedAt.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	got := episodes[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, motion.WalkingStraight, got.Movement)
	require.NotNil(t, got.EndedAt)
	require.NotNil(t, got.DurationSeconds)
	assert.Equal(t, 25.0, *got.DurationSeconds)
	assert.Equal(t, 12, got.EventCount)
	assert.Equal(t, 0.88, got.MeanConfidence)
	assert.True(t, got.IsDaytime)
	assert.Len(t, got.FeatureCentroid.Slice(), 9)
}

func TestCloseEpisodeNotFound(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	centroid := pgvector.NewVector(makeStorageFeatures(2.0).Vector())

	err := storage.CloseEpisode(ctx, uuid.New(), time.Now(), 10.0, 3, 0.7, centroid, nil)
	require.Error(t, err)
}

func TestFindSimilarEpisodesOrdering(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	base := makeStorageFeatures(2.0)

	variants := []struct {
		movement motion.MovementType
		stepFreq float64
	}{
		{motion.WalkingStraight, 2.0},
		{motion.ClimbingStairs, 1.8},
		{motion.Stationary, 0.1},
	}

	started := time.Now().Add(-10 * time.Minute)

	for i, v := range variants {
		rec := &EpisodeRecord{
			ID:             uuid.New(),
			Device:         "watch-01",
			Movement:       v.movement,
			StartedAt:      started.Add(time.Duration(i) * time.Minute),
			MeanConfidence: 0.8,
		}
		err := storage.OpenEpisode(ctx, rec)
		require.NoError(t, err)

		centroid := pgvector.NewVector(makeStorageFeatures(v.stepFreq).Vector())
		endedAt := rec.StartedAt.Add(30 * time.Second)
		err = storage.CloseEpisode(ctx, rec.ID, endedAt, 30.0, 5, 0.8, centroid, nil)
		require.NoError(t, err)
	}

	similar, err := storage.FindSimilarEpisodes(ctx, pgvector.NewVector(base.Vector()), 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)

	// Most similar first: the exact walking centroid, then the stairs one
	assert.Equal(t, motion.WalkingStraight, similar[0].Movement)
	assert.LessOrEqual(t, similar[0].Distance, similar[1].Distance)
}

func makeStorageFeatures(stepFreq float64) motion.FeatureVector {
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
