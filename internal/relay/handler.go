package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dgnsrekt/inspector_proxy/internal/types"
)

// SSEHandler returns an http.HandlerFunc that streams lifecycle events as SSE.
// Clients may filter with ?devices=id1,id2 and ?kinds=kind1,kind2.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		deviceFilter := parseFilter(r.URL.Query().Get("devices"))
		kindFilter := parseFilter(r.URL.Query().Get("kinds"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !matches(deviceFilter, evt.DeviceID) || !matches(kindFilter, evt.Kind) {
					continue
				}
				if err := writeEvent(w, evt); err != nil {
					slog.Debug("relay: sse write failed", "error", err)
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, evt types.LifecycleEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Kind, data)
	return err
}

// parseFilter returns nil for an empty list, meaning accept all.
func parseFilter(q string) map[string]bool {
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, f := range strings.Split(q, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filter[f] = true
		}
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

func matches(filter map[string]bool, value string) bool {
	return filter == nil || filter[value]
}
