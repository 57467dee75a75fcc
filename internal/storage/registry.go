package storage

import (
	"log/slog"
	"sync"
)

// TrafficFileName is the file each device's trace is written to.
const TrafficFileName = "traffic.jsonl"

// WriterRegistry manages one JSONLWriter per connected device. Each device
// gets its own directory named after its sanitized id.
type WriterRegistry struct {
	baseDir    string
	maxSizeMB  int
	bufferSize int

	mu      sync.Mutex
	writers map[string]*JSONLWriter
}

// NewWriterRegistry creates a new WriterRegistry rooted at baseDir.
func NewWriterRegistry(baseDir string, bufferSize int, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:    baseDir,
		maxSizeMB:  maxSizeMB,
		bufferSize: bufferSize,
		writers:    make(map[string]*JSONLWriter),
	}
}

// Writer returns (or creates) the writer for deviceID.
func (r *WriterRegistry) Writer(deviceID string) *JSONLWriter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[deviceID]; ok {
		return w
	}

	segment := SanitizeSegment(deviceID)
	w := NewJSONLWriter(r.baseDir, segment, TrafficFileName, r.bufferSize, r.maxSizeMB)
	r.writers[deviceID] = w
	slog.Info("Created new JSONL writer", "device_id", deviceID, "dir", segment)
	return w
}

// Release flushes and closes the writer for deviceID, if any.
func (r *WriterRegistry) Release(deviceID string) {
	r.mu.Lock()
	w, ok := r.writers[deviceID]
	delete(r.writers, deviceID)
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := w.Close(); err != nil {
		slog.Error("Failed to close writer", "device_id", deviceID, "error", err)
	}
}

// Len returns the number of open writers.
func (r *WriterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writers)
}

// Close closes all managed writers.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	writers := r.writers
	r.writers = make(map[string]*JSONLWriter)
	r.mu.Unlock()

	var lastErr error
	for deviceID, w := range writers {
		if err := w.Close(); err != nil {
			slog.Error("Failed to close writer", "device_id", deviceID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
