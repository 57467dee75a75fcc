package types

import "time"

// Direction of a relayed frame, relative to the proxy.
type Direction string

const (
	DirectionFromDevice   Direction = "device_to_proxy"
	DirectionToDevice     Direction = "proxy_to_device"
	DirectionFromDebugger Direction = "debugger_to_proxy"
	DirectionToDebugger   Direction = "proxy_to_debugger"
)

// TrafficRecord is one traced frame written to the JSONL trace.
type TrafficRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	DeviceID     string    `json:"device_id"`
	Direction    Direction `json:"direction"`
	Method       string    `json:"method,omitempty"`
	PayloadData  string    `json:"payload_data"`
	Truncated    bool      `json:"truncated,omitempty"`
	OriginalSize int       `json:"original_size,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
}

// LifecycleEvent describes a state change of a device or its debugger session.
type LifecycleEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	DeviceID  string    `json:"device_id"`
	PageID    string    `json:"page_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
