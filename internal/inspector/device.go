package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgnsrekt/inspector_proxy/internal/types"
	"github.com/spf13/afero"
)

// DefaultPollInterval is how often the device is asked for its page list.
const DefaultPollInterval = time.Second

const eventQueueSize = 256

// ErrDeviceClosed is returned by Device calls made after the device went away.
var ErrDeviceClosed = errors.New("inspector: device closed")

// Tracer receives every frame the device relays. It is called from the
// device goroutine and must not block.
type Tracer interface {
	Trace(deviceID string, dir types.Direction, frame []byte)
}

// Options configures a Device. Zero values select production defaults.
type Options struct {
	ProjectRoot      string
	Fs               afero.Fs
	Clock            clock.Clock
	PollInterval     time.Duration
	NetworkCacheSize int
	Delegate         Delegate
	Observer         Observer
	Tracer           Tracer
}

// Device relays the inspector protocol between one connected application
// runtime and at most one debugger. All relay state is owned by the goroutine
// running Run; the exported methods hand work to it over a channel.
type Device struct {
	id     string
	name   string
	app    string
	socket Socket

	clock        clock.Clock
	pollInterval time.Duration
	delegate     Delegate
	observer     Observer
	tracer       Tracer
	log          *slog.Logger

	events chan func()
	done   chan struct{}

	// stopping is closed when Run starts to wind down; once stopped is set
	// under stopMu no further work is queued.
	stopMu   sync.RWMutex
	stopped  bool
	stopping chan struct{}

	// Owned by the Run goroutine.
	pages          *pageRegistry
	session        *Session
	reload         ReloadState
	sources        *sourceIndex
	responses      *responseCache
	lastPagesFrame string
	closed         bool
}

// NewDevice creates the relay for one device connection. Run must be called
// for it to process anything.
func NewDevice(id, name, app string, socket Socket, opts Options) (*Device, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	responses, err := newResponseCache(opts.NetworkCacheSize)
	if err != nil {
		return nil, err
	}

	return &Device{
		id:           id,
		name:         name,
		app:          app,
		socket:       socket,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
		delegate:     opts.Delegate,
		observer:     opts.Observer,
		tracer:       opts.Tracer,
		log:          slog.Default().With("device_id", id, "device_name", name),
		events:       make(chan func(), eventQueueSize),
		done:         make(chan struct{}),
		stopping:     make(chan struct{}),
		pages:        newPageRegistry(app),
		sources:      newSourceIndex(opts.Fs, opts.ProjectRoot),
		responses:    responses,
	}, nil
}

func (d *Device) ID() string   { return d.id }
func (d *Device) Name() string { return d.name }
func (d *Device) App() string  { return d.app }

// Done is closed once Run has returned.
func (d *Device) Done() <-chan struct{} { return d.done }

// Run processes device and debugger traffic and polls the page list until the
// device socket closes or ctx is cancelled. Work queued before Run returns is
// still executed against the closed device.
func (d *Device) Run(ctx context.Context) {
	defer close(d.done)
	defer d.drain()

	ticker := d.clock.Ticker(d.pollInterval)
	defer ticker.Stop()

	d.log.Info("device connected", "app", d.app)
	for {
		select {
		case <-ctx.Done():
			d.handleDeviceClose()
			if err := d.socket.Close(); err != nil {
				d.log.Debug("device socket close failed", "error", err)
			}
			return
		case <-ticker.C:
			d.sendToDevice(types.EventGetPages, nil)
		case fn := <-d.events:
			fn()
			if d.closed {
				return
			}
		}
	}
}

// drain stops the queue and runs what is left in it. Handlers see d.closed
// and only release resources, so a debugger that attached during the close
// still gets its socket closed.
func (d *Device) drain() {
	close(d.stopping)
	d.stopMu.Lock()
	d.stopped = true
	d.stopMu.Unlock()

	for {
		select {
		case fn := <-d.events:
			fn()
		default:
			return
		}
	}
}

// post queues fn for the Run goroutine. It reports false when the device is gone.
func (d *Device) post(fn func()) bool {
	d.stopMu.RLock()
	defer d.stopMu.RUnlock()
	if d.stopped {
		return false
	}
	select {
	case d.events <- fn:
		return true
	case <-d.stopping:
		return false
	}
}

// HandleDeviceMessage queues a frame read from the device socket.
func (d *Device) HandleDeviceMessage(data []byte) {
	d.post(func() { d.handleDeviceFrame(data) })
}

// HandleDeviceClose reports that the device socket closed.
func (d *Device) HandleDeviceClose() {
	d.post(d.handleDeviceClose)
}

// AttachDebugger installs a new debugger session for pageID, replacing any
// existing one. The returned session identifies the connection in later
// HandleDebuggerMessage and HandleDebuggerClose calls.
func (d *Device) AttachDebugger(socket Socket, pageID string) (*Session, error) {
	s := &Session{socket: socket, pageID: pageID}
	if !d.post(func() { d.attach(s) }) {
		return nil, ErrDeviceClosed
	}
	return s, nil
}

// HandleDebuggerMessage queues a frame read from a debugger socket.
func (d *Device) HandleDebuggerMessage(s *Session, data []byte) {
	d.post(func() { d.handleDebuggerFrame(s, data) })
}

// HandleDebuggerClose reports that a debugger socket closed.
func (d *Device) HandleDebuggerClose(s *Session) {
	d.post(func() { d.detach(s) })
}

// Pages returns the externally visible page list.
func (d *Device) Pages(ctx context.Context) ([]types.Page, error) {
	reply := make(chan []types.Page, 1)
	if !d.post(func() { reply <- d.pages.list() }) {
		return nil, ErrDeviceClosed
	}
	select {
	case pages := <-reply:
		return pages, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, ErrDeviceClosed
	}
}

// Close closes the device socket. The read loop owner then reports the close.
func (d *Device) Close() error {
	return d.socket.Close()
}

func (d *Device) handleDeviceFrame(data []byte) {
	if d.closed {
		return
	}
	var msg types.DeviceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.log.Debug("malformed device frame", "error", err)
		return
	}

	switch msg.Event {
	case types.EventGetPages:
		// Pages arrive every poll interval; only changes are interesting.
		if frame := string(data); frame != d.lastPagesFrame {
			d.lastPagesFrame = frame
			d.log.Debug("device pages changed", "frame", frame)
			d.trace(types.DirectionFromDevice, data)
		}
		var pages []types.Page
		if err := json.Unmarshal(msg.Payload, &pages); err != nil {
			d.log.Debug("malformed page list", "error", err)
			return
		}
		d.updatePages(pages)

	case types.EventDisconnect:
		d.trace(types.DirectionFromDevice, data)
		var p types.PagePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			d.log.Debug("malformed disconnect payload", "error", err)
			return
		}
		d.handlePageDisconnect(p.PageID)

	case types.EventWrappedEvent:
		d.trace(types.DirectionFromDevice, data)
		var p types.WrappedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			d.log.Debug("malformed wrapped event", "error", err)
			return
		}
		d.handleWrappedEvent(p)

	default:
		d.log.Debug("unknown device event", "event", msg.Event)
	}
}

func (d *Device) updatePages(reported []types.Page) {
	if page, ok := d.pages.replace(reported); ok {
		d.onNewAppPage(page)
	}
}

// handlePageDisconnect is sent by the device when a page reloads. A debugger
// attached to a real page is told to reload; the reloadable page follows the
// new application page on its own.
func (d *Device) handlePageDisconnect(pageID string) {
	if d.session == nil || d.session.targetsReloadablePage() {
		return
	}
	d.log.Debug("page is reloading", "page_id", pageID)
	d.sendToDebugger(newNotification(methodReload))
}

func (d *Device) handleWrappedEvent(p types.WrappedPayload) {
	if d.session == nil {
		return
	}
	msg, err := ParseMessage([]byte(p.WrappedEvent))
	if err != nil {
		d.log.Debug("malformed wrapped payload", "page_id", p.PageID, "error", err)
		return
	}
	if d.delegate != nil && d.delegate.OnDeviceMessage(msg, d.session.socket) {
		return
	}
	out, ok := d.processFromDevice(msg)
	if !ok {
		return
	}
	d.sendToDebugger(out)
}

func (d *Device) attach(s *Session) {
	if d.closed {
		_ = s.socket.Close()
		return
	}
	if old := d.session; old != nil {
		if err := old.socket.Close(); err != nil {
			d.log.Debug("previous debugger close failed", "error", err)
		}
		d.sendToDevice(types.EventDisconnect, types.PagePayload{PageID: d.pages.resolve(old.pageID)})
		d.session = nil
		d.notify(LifecycleDebuggerDetached, old.pageID)
	}

	d.session = s
	d.log.Info("debugger attached", "page_id", s.pageID)
	d.sendToDevice(types.EventConnect, types.PagePayload{PageID: d.pages.resolve(s.pageID)})
	d.notify(LifecycleDebuggerAttached, s.pageID)
}

func (d *Device) handleDebuggerFrame(s *Session, data []byte) {
	if d.session != s {
		return
	}
	d.trace(types.DirectionFromDebugger, data)
	if !d.pages.hasAppPage() {
		d.log.Debug("dropping debugger message, no application page yet")
		return
	}

	msg, err := ParseMessage(data)
	if err != nil {
		d.log.Debug("malformed debugger frame", "error", err)
		return
	}
	if d.delegate != nil && d.delegate.OnDebuggerMessage(msg, s.socket) {
		return
	}

	out, action := d.processFromDebugger(msg)
	switch action {
	case actionReply:
		d.sendToDebugger(out)
	case actionForward:
		d.sendWrapped(d.pages.resolve(s.pageID), out)
	}
}

func (d *Device) detach(s *Session) {
	if d.session != s {
		return
	}
	d.log.Info("debugger detached", "page_id", s.pageID)
	d.sendToDevice(types.EventDisconnect, types.PagePayload{PageID: d.pages.resolve(s.pageID)})
	d.session = nil
	d.notify(LifecycleDebuggerDetached, s.pageID)
}

func (d *Device) handleDeviceClose() {
	if d.closed {
		return
	}
	if s := d.session; s != nil {
		if err := s.socket.Close(); err != nil {
			d.log.Debug("debugger close failed", "error", err)
		}
		d.session = nil
		d.notify(LifecycleDebuggerDetached, s.pageID)
	}
	d.responses.purge()
	d.closed = true
	d.log.Info("device disconnected")
	d.notify(LifecycleDeviceClosed, "")
}

// sendToDevice writes an envelope to the device. Failures are logged and
// otherwise ignored.
func (d *Device) sendToDevice(event string, payload any) {
	msg, err := types.NewDeviceMessage(event, payload)
	if err != nil {
		d.log.Debug("device message encode failed", "event", event, "error", err)
		return
	}
	data, err := marshalCompact(msg)
	if err != nil {
		d.log.Debug("device message encode failed", "event", event, "error", err)
		return
	}
	if event != types.EventGetPages {
		d.trace(types.DirectionToDevice, data)
	}
	if err := d.socket.Send(data); err != nil {
		d.log.Debug("device send failed", "event", event, "error", err)
	}
}

// sendWrapped forwards a CDP message to pageID on the device.
func (d *Device) sendWrapped(pageID string, m Message) {
	inner, err := m.MarshalJSON()
	if err != nil {
		d.log.Debug("wrapped message encode failed", "method", m.Method, "error", err)
		return
	}
	d.sendToDevice(types.EventWrappedEvent, types.WrappedPayload{PageID: pageID, WrappedEvent: string(inner)})
}

// sendToDebugger writes a CDP message to the attached debugger, if any.
func (d *Device) sendToDebugger(m Message) {
	if d.session == nil {
		return
	}
	data, err := m.MarshalJSON()
	if err != nil {
		d.log.Debug("debugger message encode failed", "method", m.Method, "error", err)
		return
	}
	d.trace(types.DirectionToDebugger, data)
	if err := d.session.socket.Send(data); err != nil {
		d.log.Debug("debugger send failed", "method", m.Method, "error", err)
	}
}

func (d *Device) trace(dir types.Direction, frame []byte) {
	if d.tracer != nil {
		d.tracer.Trace(d.id, dir, frame)
	}
}

func (d *Device) notify(kind, pageID string) {
	if d.observer != nil {
		d.observer.Lifecycle(d.id, kind, pageID)
	}
}
