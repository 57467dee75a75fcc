package capture

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgnsrekt/inspector_proxy/internal/storage"
	"github.com/dgnsrekt/inspector_proxy/internal/types"
)

// TrafficRecorder writes every relayed frame to a per-device JSONL trace.
// Payloads larger than maxFrameBytes are cut and fingerprinted.
type TrafficRecorder struct {
	registry      *storage.WriterRegistry
	maxFrameBytes int
	now           func() time.Time
}

func NewTrafficRecorder(registry *storage.WriterRegistry, maxFrameBytes int) *TrafficRecorder {
	return &TrafficRecorder{
		registry:      registry,
		maxFrameBytes: maxFrameBytes,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Trace records one frame. It never blocks the caller.
func (r *TrafficRecorder) Trace(deviceID string, dir types.Direction, frame []byte) {
	rec := &types.TrafficRecord{
		Timestamp: r.now(),
		DeviceID:  deviceID,
		Direction: dir,
		Method:    frameMethod(dir, frame),
	}
	clipPayload(rec, frame, r.maxFrameBytes)

	if err := r.registry.Writer(deviceID).Write(rec); err != nil {
		slog.Debug("Failed to write traffic record", "device_id", deviceID, "direction", dir, "error", err)
	}
}

// Release closes the trace of a device that went away.
func (r *TrafficRecorder) Release(deviceID string) {
	r.registry.Release(deviceID)
}

// frameMethod names a frame for the trace: the CDP method for debugger
// traffic, and for device envelopes the wrapped method or the envelope event.
func frameMethod(dir types.Direction, frame []byte) string {
	switch dir {
	case types.DirectionFromDevice, types.DirectionToDevice:
		var msg types.DeviceMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			return ""
		}
		if msg.Event != types.EventWrappedEvent {
			return msg.Event
		}
		var p types.WrappedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return msg.Event
		}
		if method := cdpMethod([]byte(p.WrappedEvent)); method != "" {
			return method
		}
		return msg.Event
	default:
		return cdpMethod(frame)
	}
}

func cdpMethod(frame []byte) string {
	var m struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(frame, &m); err != nil {
		return ""
	}
	return m.Method
}
