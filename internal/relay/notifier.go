package relay

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/dgnsrekt/inspector_proxy/internal/types"
	"github.com/google/uuid"
)

// Notifier publishes device lifecycle notifications on a Broker.
type Notifier struct {
	broker *Broker
	clock  clock.Clock
}

// NewNotifier creates a notifier. A nil clock uses wall time.
func NewNotifier(broker *Broker, clk clock.Clock) *Notifier {
	if clk == nil {
		clk = clock.New()
	}
	return &Notifier{broker: broker, clock: clk}
}

// Lifecycle stamps and publishes one event. It never blocks.
func (n *Notifier) Lifecycle(deviceID, kind, pageID string) {
	evt := types.LifecycleEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		DeviceID:  deviceID,
		PageID:    pageID,
		Timestamp: n.clock.Now().UTC(),
	}
	slog.Debug("relay: lifecycle event", "kind", kind, "device_id", deviceID, "page_id", pageID)
	n.broker.Publish(evt)
}
