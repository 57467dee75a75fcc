package inspector

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/dgnsrekt/inspector_proxy/internal/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var errSocketClosed = errors.New("socket closed")

type fakeSocket struct {
	mu     sync.Mutex
	frames []string
	closed bool
}

func (f *fakeSocket) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errSocketClosed
	}
	f.frames = append(f.frames, string(data))
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// take returns the frames sent so far and forgets them.
func (f *fakeSocket) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.frames
	f.frames = nil
	return out
}

// deviceFrame is a decoded proxy->device envelope.
type deviceFrame struct {
	Event  string
	PageID string
	Inner  map[string]any
}

func decodeDeviceFrames(t *testing.T, frames []string) []deviceFrame {
	t.Helper()
	out := make([]deviceFrame, 0, len(frames))
	for _, raw := range frames {
		var msg types.DeviceMessage
		require.NoError(t, json.Unmarshal([]byte(raw), &msg))
		f := deviceFrame{Event: msg.Event}
		if len(msg.Payload) > 0 {
			var p types.WrappedPayload
			require.NoError(t, json.Unmarshal(msg.Payload, &p))
			f.PageID = p.PageID
			if p.WrappedEvent != "" {
				require.NoError(t, json.Unmarshal([]byte(p.WrappedEvent), &f.Inner))
			}
		}
		out = append(out, f)
	}
	return out
}

func decodeDebuggerFrames(t *testing.T, frames []string) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(frames))
	for _, raw := range frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &m))
		out = append(out, m)
	}
	return out
}

func newTestDevice(t *testing.T, opts Options) (*Device, *fakeSocket) {
	t.Helper()
	if opts.Fs == nil {
		opts.Fs = afero.NewMemMapFs()
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewMock()
	}
	sock := &fakeSocket{}
	d, err := NewDevice("dev-1", "Pixel 7", "com.example.app", sock, opts)
	require.NoError(t, err)
	return d, sock
}

func pagesFrame(t *testing.T, pages ...types.Page) []byte {
	t.Helper()
	msg, err := types.NewDeviceMessage(types.EventGetPages, pages)
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func wrappedFrame(t *testing.T, pageID, inner string) []byte {
	t.Helper()
	msg, err := types.NewDeviceMessage(types.EventWrappedEvent, types.WrappedPayload{PageID: pageID, WrappedEvent: inner})
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func appPage(id string) types.Page {
	return types.Page{ID: id, Title: "React Native", VM: "Hermes", App: "com.example.app"}
}

// attachDebugger attaches synchronously, bypassing the Run goroutine.
func attachDebugger(d *Device, pageID string) (*Session, *fakeSocket) {
	sock := &fakeSocket{}
	s := &Session{socket: sock, pageID: pageID}
	d.attach(s)
	return s, sock
}
