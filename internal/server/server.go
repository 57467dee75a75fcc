package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/inspector_proxy/internal/inspector"
	"github.com/dgnsrekt/inspector_proxy/internal/relay"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
)

// Options configures the devices a Server creates.
type Options struct {
	ProjectRoot      string
	PollInterval     time.Duration
	NetworkCacheSize int
	Fs               afero.Fs
	Clock            clock.Clock
	// Tracer, when set, receives every relayed frame. If it also has a
	// Release(deviceID string) method, that is called once a device is gone.
	Tracer inspector.Tracer
}

type tracerReleaser interface {
	Release(deviceID string)
}

// Server accepts device and debugger websockets and serves the discovery
// endpoints debugger front-ends poll.
type Server struct {
	opts     Options
	broker   *relay.Broker
	notifier *relay.Notifier

	mu      sync.RWMutex
	devices map[string]*inspector.Device
	closed  bool
	nextID  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server publishing lifecycle events on broker.
func New(opts Options, broker *relay.Broker) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:     opts,
		broker:   broker,
		notifier: relay.NewNotifier(broker, opts.Clock),
		devices:  make(map[string]*inspector.Device),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handler returns the HTTP handler for all proxy routes.
func (s *Server) Handler() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(withRequestHost)

	cfg := huma.DefaultConfig("Inspector Proxy", "1.0.0")
	cfg.DocsPath = ""
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)
	registerDiscoveryHandlers(api, s)

	router.Get(devicePath, s.handleDevice)
	router.Get(debuggerPath, s.handleDebugger)
	router.Get("/inspector/events", relay.SSEHandler(s.broker))

	return router
}

// Close disconnects every device and waits for their relays to stop.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Server) closing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// nextDeviceID hands out ids for devices that did not name themselves.
func (s *Server) nextDeviceID() string {
	return strconv.FormatInt(s.nextID.Add(1)-1, 10)
}

// register installs dev and starts its relay, closing any previous device
// with the same id. It reports false once the server is closed.
func (s *Server) register(dev *inspector.Device) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	prev := s.devices[dev.ID()]
	s.devices[dev.ID()] = dev
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		dev.Run(s.ctx)
	}()

	if prev != nil {
		slog.Info("device reconnected, closing previous connection", "device_id", dev.ID())
		if err := prev.Close(); err != nil {
			slog.Debug("previous device close failed", "device_id", dev.ID(), "error", err)
		}
	}
	return true
}

// unregister removes dev unless a newer device already took its id.
func (s *Server) unregister(dev *inspector.Device) {
	s.mu.Lock()
	if s.devices[dev.ID()] == dev {
		delete(s.devices, dev.ID())
	}
	s.mu.Unlock()
}

func (s *Server) device(id string) (*inspector.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[id]
	return dev, ok
}

// snapshot returns the connected devices ordered by id.
func (s *Server) snapshot() []*inspector.Device {
	s.mu.RLock()
	out := make([]*inspector.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		out = append(out, dev)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// DeviceCount returns the number of connected devices.
func (s *Server) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
