package server

import (
	"log/slog"
	"net/http"

	"github.com/dgnsrekt/inspector_proxy/internal/inspector"
	"github.com/gobwas/ws"
)

const (
	devicePath   = "/inspector/device"
	debuggerPath = "/inspector/debug"
)

// handleDevice upgrades a device connection and relays it until either side
// goes away.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if s.closing() {
		writeError(w, newError(CodeShuttingDown, "server is shutting down", nil))
		return
	}

	q := r.URL.Query()
	id := q.Get("device")
	if id == "" {
		id = s.nextDeviceID()
	}
	name := q.Get("name")
	app := q.Get("app")

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Warn("device upgrade failed", "device_id", id, "error", newError(CodeUpgradeFailed, "device websocket", err))
		return
	}
	sock := newWSSocket(conn)

	dev, err := inspector.NewDevice(id, name, app, sock, inspector.Options{
		ProjectRoot:      s.opts.ProjectRoot,
		Fs:               s.opts.Fs,
		Clock:            s.opts.Clock,
		PollInterval:     s.opts.PollInterval,
		NetworkCacheSize: s.opts.NetworkCacheSize,
		Observer:         s.notifier,
		Tracer:           s.opts.Tracer,
	})
	if err != nil {
		slog.Error("device setup failed", "device_id", id, "error", err)
		_ = sock.Close()
		return
	}

	if !s.register(dev) {
		_ = sock.Close()
		return
	}
	s.notifier.Lifecycle(id, inspector.LifecycleDeviceConnected, "")

	for {
		data, err := sock.Read()
		if err != nil {
			slog.Debug("device read ended", "device_id", id, "error", err)
			break
		}
		dev.HandleDeviceMessage(data)
	}

	dev.HandleDeviceClose()
	<-dev.Done()
	_ = sock.Close()
	s.unregister(dev)
	if rel, ok := s.opts.Tracer.(tracerReleaser); ok {
		rel.Release(id)
	}
}

// handleDebugger attaches a debugger connection to one page of a device.
func (s *Server) handleDebugger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := q.Get("device")
	pageID := q.Get("page")
	if deviceID == "" || pageID == "" {
		writeError(w, newError(CodeValidation, "device and page query parameters are required", nil))
		return
	}
	dev, ok := s.device(deviceID)
	if !ok {
		writeError(w, newError(CodeDeviceNotFound, "unknown device "+deviceID, nil))
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Warn("debugger upgrade failed", "device_id", deviceID, "error", newError(CodeUpgradeFailed, "debugger websocket", err))
		return
	}
	sock := newWSSocket(conn)

	session, err := dev.AttachDebugger(sock, pageID)
	if err != nil {
		slog.Info("debugger attach rejected", "device_id", deviceID, "page_id", pageID, "error", err)
		_ = sock.Close()
		return
	}

	for {
		data, err := sock.Read()
		if err != nil {
			slog.Debug("debugger read ended", "device_id", deviceID, "page_id", pageID, "error", err)
			break
		}
		dev.HandleDebuggerMessage(session, data)
	}

	dev.HandleDebuggerClose(session)
	_ = sock.Close()
}
