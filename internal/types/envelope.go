package types

import "encoding/json"

// Device envelope events exchanged between the proxy and a device.
const (
	EventGetPages     = "getPages"
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventWrappedEvent = "wrappedEvent"
)

// DeviceMessage is the outer frame on the device socket. Payload is decoded
// according to Event.
type DeviceMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PagePayload addresses a connect or disconnect to one page.
type PagePayload struct {
	PageID string `json:"pageId"`
}

// WrappedPayload carries a serialized CDP message for one page.
type WrappedPayload struct {
	PageID       string `json:"pageId"`
	WrappedEvent string `json:"wrappedEvent"`
}

// NewDeviceMessage builds an envelope, encoding payload when non-nil.
func NewDeviceMessage(event string, payload any) (DeviceMessage, error) {
	msg := DeviceMessage{Event: event}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return DeviceMessage{}, err
	}
	msg.Payload = raw
	return msg, nil
}
