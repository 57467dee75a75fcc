package inspector

// Socket is the send side of a duplex text-frame connection. Inbound frames
// are pushed into a Device by whoever owns the read loop.
type Socket interface {
	Send(data []byte) error
	Close() error
}

// Delegate is an optional hook consulted before the built-in interception
// rules. Returning true means the message was handled and suppresses all
// default processing for it.
type Delegate interface {
	OnDeviceMessage(msg Message, debugger Socket) bool
	OnDebuggerMessage(msg Message, debugger Socket) bool
}

// Lifecycle kinds reported to an Observer.
const (
	LifecycleDeviceConnected  = "device_connected"
	LifecycleDebuggerAttached = "debugger_attached"
	LifecycleDebuggerDetached = "debugger_detached"
	LifecycleAppPageChanged   = "app_page_changed"
	LifecycleReloadCompleted  = "reload_completed"
	LifecycleDeviceClosed     = "device_closed"
)

// Observer receives lifecycle notifications. It is called from the device
// goroutine and must not block.
type Observer interface {
	Lifecycle(deviceID, kind, pageID string)
}
