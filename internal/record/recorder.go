package record

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wasm-oj/wark/internal/probe"
)

// Event represents one line of the probe record
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // "start", "attempt", "result"
	Allocator string    `json:"allocator,omitempty"`
	SizeMB    *uint64   `json:"size_mb,omitempty"`
	Bytes     *uint64   `json:"bytes,omitempty"`
	Outcome   string    `json:"outcome,omitempty"` // "allocated", "failed"
	Start     string    `json:"start,omitempty"`
	End       string    `json:"end,omitempty"`
	Error     string    `json:"error,omitempty"`
	MinMB     *uint64   `json:"min_mb,omitempty"`
	MaxMB     *uint64   `json:"max_mb,omitempty"`
	LimitMB   *uint64   `json:"limit_mb,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Immediate bool      `json:"immediate,omitempty"`
	Duration  string    `json:"duration,omitempty"` // ISO 8601 duration format
}

// mb boxes a count so that a real zero survives omitempty
func mb(v uint64) *uint64 {
	return &v
}

// isoDuration renders d as an ISO 8601 duration with nanosecond precision
func isoDuration(d time.Duration) string {
	return fmt.Sprintf("PT%d.%09dS", int64(d.Seconds()), d.Nanoseconds()%1e9)
}

// Recorder appends probe events to a file in JSON-lines format
type Recorder struct {
	path   string
	file   *os.File
	lock   sync.Mutex
	logger *slog.Logger
}

// NewRecorder creates a recorder appending to path
func NewRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if path == "" {
		return nil, fmt.Errorf("record file path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Ensure record directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}

	return &Recorder{
		path:   path,
		file:   file,
		logger: logger,
	}, nil
}

// Log writes an event to the record file
func (r *Recorder) Log(event Event) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.file == nil {
		return fmt.Errorf("recorder file not initialized")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal record event: %w", err)
	}

	if _, err := r.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record event: %w", err)
	}
	return nil
}

// LogStart records the allocator and bounds of a run
func (r *Recorder) LogStart(allocator string, b probe.Bounds) error {
	return r.Log(Event{
		Type:      "start",
		Allocator: allocator,
		MinMB:     mb(b.MinMB),
		MaxMB:     mb(b.MaxMB),
	})
}

// Observe records a single attempt. It satisfies probe.Observer; write
// failures are logged and never interrupt the probe.
func (r *Recorder) Observe(att probe.Attempt) {
	event := Event{
		Type:   "attempt",
		SizeMB: mb(att.SizeMB),
		Bytes:  mb(att.Bytes),
	}
	if att.OK {
		event.Outcome = "allocated"
		event.Start = fmt.Sprintf("%#x", att.Start)
		event.End = fmt.Sprintf("%#x", att.End)
	} else {
		event.Outcome = "failed"
		if att.Err != nil {
			event.Error = att.Err.Error()
		}
	}

	if err := r.Log(event); err != nil {
		r.logger.Warn("failed to record attempt", slog.Uint64("size_mb", att.SizeMB), slog.String("error", err.Error()))
	}
}

// LogResult records the outcome of a run
func (r *Recorder) LogResult(res probe.Result, duration time.Duration) error {
	event := Event{
		Type:      "result",
		MinMB:     mb(res.Bounds.MinMB),
		MaxMB:     mb(res.Bounds.MaxMB),
		LimitMB:   mb(res.LimitMB),
		Attempts:  res.Attempts,
		Immediate: res.Immediate,
		Duration:  isoDuration(duration),
		Outcome:   "exhausted",
	}
	if res.Failed {
		event.Outcome = "failed"
		event.SizeMB = mb(res.FailedMB)
	}
	return r.Log(event)
}

// Close syncs and closes the record file
func (r *Recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.file == nil {
		return nil
	}
	if err := r.file.Sync(); err != nil {
		r.logger.Warn("failed to sync record file", slog.String("error", err.Error()))
	}
	err := r.file.Close()
	r.file = nil // Mark as closed
	return err
}
