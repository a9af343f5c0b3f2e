package recorder

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/stridelabs/stride-platform/internal/motion"
	"github.com/stridelabs/stride-platform/pkg/config"
)

// csvHeader is the column layout of the per-device movement log
var csvHeader = []string{
	"Timestamp", "DateTime", "MovementType", "Confidence",
	"AccX", "AccY", "AccZ", "GyroX", "GyroY", "GyroZ",
}

// Recorder appends movement events to per-device CSV log files and
// keeps a bounded in-memory event history. It subscribes to the motion
// agent's event stream; classification itself never depends on it.
type Recorder struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	logs    map[string]*deviceLog
	history []motion.MovementEvent
	head    int
	count   int
}

// deviceLog is an open CSV file for one device
type deviceLog struct {
	file   *os.File
	writer *csv.Writer
}

// NewRecorder creates a movement event recorder. An empty CSV log
// directory disables file output; the in-memory history is always kept.
func NewRecorder(cfg *config.Config, logger *slog.Logger) (*Recorder, error) {
	if cfg.CSVLogDir != "" {
		if err := os.MkdirAll(cfg.CSVLogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create CSV log directory: %w", err)
		}
	}

	limit := cfg.EventHistoryLimit
	if limit < 1 {
		limit = 1
	}

	return &Recorder{
		dir:     cfg.CSVLogDir,
		logger:  logger,
		logs:    make(map[string]*deviceLog),
		history: make([]motion.MovementEvent, limit),
	}, nil
}

// Record stores one movement event. It satisfies the motion listener
// signature so it can be subscribed directly to the agent. Write
// failures are logged and never propagate back to classification.
func (r *Recorder) Record(event motion.MovementEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendHistory(event)

	if r.dir == "" {
		return
	}

	log, err := r.deviceLogFor(event.Device)
	if err != nil {
		r.logger.Warn("Failed to open movement log", "device", event.Device, "error", err)
		return
	}

	if err := log.writer.Write(eventRow(event)); err != nil {
		r.logger.Warn("Failed to write movement log row", "device", event.Device, "error", err)
		return
	}
	log.writer.Flush()
	if err := log.writer.Error(); err != nil {
		r.logger.Warn("Failed to flush movement log", "device", event.Device, "error", err)
	}
}

// appendHistory adds an event to the ring, evicting the oldest entry
// once the history is full. Caller holds the lock.
func (r *Recorder) appendHistory(event motion.MovementEvent) {
	r.history[r.head] = event
	r.head = (r.head + 1) % len(r.history)
	if r.count < len(r.history) {
		r.count++
	}
}

// RecentEvents returns up to limit events, newest first. A limit of 0
// or less returns the full history.
func (r *Recorder) RecentEvents(limit int) []motion.MovementEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}

	events := make([]motion.MovementEvent, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.head - i + len(r.history)) % len(r.history)
		events = append(events, r.history[idx])
	}

	return events
}

// EventCount returns the number of events currently held in history
func (r *Recorder) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes and closes all open log files
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for device, log := range r.logs {
		log.writer.Flush()
		if err := log.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close movement log for %s: %w", device, err)
		}
	}
	r.logs = make(map[string]*deviceLog)

	return firstErr
}

// deviceLogFor returns the open log for a device, creating the file
// (with header) on first use. Caller holds the lock.
func (r *Recorder) deviceLogFor(device string) (*deviceLog, error) {
	if log, ok := r.logs[device]; ok {
		return log, nil
	}

	path := filepath.Join(r.dir, fmt.Sprintf("movement_%s.csv", device))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	writer := csv.NewWriter(file)

	// Header goes in only when the file is fresh so restarts append
	// rather than corrupt
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
		writer.Flush()
	}

	log := &deviceLog{file: file, writer: writer}
	r.logs[device] = log

	r.logger.Info("Opened movement log", "device", device, "path", path)

	return log, nil
}

// eventRow formats one movement event as a CSV record
func eventRow(event motion.MovementEvent) []string {
	return []string{
		strconv.FormatInt(event.Timestamp.UnixMilli(), 10),
		event.Timestamp.Format("2006-01-02 15:04:05"),
		string(event.Movement),
		fmt.Sprintf("%.2f", event.Confidence),
		fmt.Sprintf("%.4f", event.Acc.X),
		fmt.Sprintf("%.4f", event.Acc.Y),
		fmt.Sprintf("%.4f", event.Acc.Z),
		fmt.Sprintf("%.4f", event.Gyro.X),
		fmt.Sprintf("%.4f", event.Gyro.Y),
		fmt.Sprintf("%.4f", event.Gyro.Z),
	}
}
