package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/stridelabs/stride-platform/internal/episode"
	"github.com/stridelabs/stride-platform/pkg/config"
	"github.com/stridelabs/stride-platform/pkg/postgres"
)

const featureDimensions = 9

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "history-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Stride History Agent",
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB),
		"api_port", cfg.APIPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Disconnect()

	storage := episode.NewStorage(pgClient, logger)

	// Dates arrive in local time; queries run against timestamptz columns
	localTZ := time.Local

	// GET /health
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, err := pgClient.HealthCheck(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !status.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.Error("Failed to encode response", "error", err)
		}
	})

	// GET /api/events?device=watch-01&limit=100
	http.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		device := r.URL.Query().Get("device")
		limit := parseLimit(r.URL.Query().Get("limit"), 100)

		events, err := storage.RecentEvents(r.Context(), device, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, events, logger)
	})

	// GET /api/episodes?from=26062025&to=27062025&device=watch-01
	http.HandleFunc("/api/episodes", func(w http.ResponseWriter, r *http.Request) {
		fromStr := r.URL.Query().Get("from") // ddmmyyyy
		toStr := r.URL.Query().Get("to")     // ddmmyyyy

		if fromStr == "" || toStr == "" {
			http.Error(w, "Missing from or to parameter (format: ddmmyyyy)", http.StatusBadRequest)
			return
		}

		from, err := parseDateToMidnight(fromStr, localTZ)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid from date: %v", err), http.StatusBadRequest)
			return
		}

		to, err := parseDateToMidnight(toStr, localTZ)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid to date: %v", err), http.StatusBadRequest)
			return
		}

		// Add 24 hours to 'to' to include the entire end day
		toEndOfDay := to.Add(24 * time.Hour)

		device := r.URL.Query().Get("device")
		limit := parseLimit(r.URL.Query().Get("limit"), 500)

		episodes, err := storage.EpisodesBetween(r.Context(), device, from, toEndOfDay, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, episodes, logger)
	})

	// GET /api/episodes/similar?features=9.8,1.2,1.44,0.4,0.5,9.7,0.9,2.0,12.0&limit=10
	http.HandleFunc("/api/episodes/similar", func(w http.ResponseWriter, r *http.Request) {
		featuresStr := r.URL.Query().Get("features")
		if featuresStr == "" {
			http.Error(w, fmt.Sprintf("Missing features parameter (%d comma-separated values)", featureDimensions), http.StatusBadRequest)
			return
		}

		centroid, err := parseFeatureVector(featuresStr)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid features: %v", err), http.StatusBadRequest)
			return
		}

		limit := parseLimit(r.URL.Query().Get("limit"), 10)

		similar, err := storage.FindSimilarEpisodes(r.Context(), centroid, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, similar, logger)
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	logger.Info("History API listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Error("API server error", "error", err)
		os.Exit(1)
	}
}

// parseDateToMidnight parses ddmmyyyy and returns midnight in local timezone
func parseDateToMidnight(dateStr string, tz *time.Location) (time.Time, error) {
	if len(dateStr) != 8 {
		return time.Time{}, fmt.Errorf("date must be 8 characters (ddmmyyyy), got %d", len(dateStr))
	}

	day := dateStr[0:2]
	month := dateStr[2:4]
	year := dateStr[4:8]

	t, err := time.ParseInLocation("02-01-2006", fmt.Sprintf("%s-%s-%s", day, month, year), tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}

	return t, nil
}

// parseFeatureVector parses a comma-separated list into a pgvector value
func parseFeatureVector(s string) (pgvector.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != featureDimensions {
		return pgvector.Vector{}, fmt.Errorf("expected %d components, got %d", featureDimensions, len(parts))
	}

	values := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return pgvector.Vector{}, fmt.Errorf("component %d: %w", i, err)
		}
		values[i] = float32(v)
	}

	return pgvector.NewVector(values), nil
}

func parseLimit(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, payload interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
