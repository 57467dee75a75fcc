package server

import (
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// wsSocket is the server side of an upgraded websocket. Sends come from the
// device goroutine and reads from the connection's handler goroutine; all
// writes, including control frame replies, go through mu.
type wsSocket struct {
	conn    net.Conn
	reader  *wsutil.Reader
	control wsutil.FrameHandlerFunc

	mu        sync.Mutex
	closeOnce sync.Once
}

func newWSSocket(conn net.Conn) *wsSocket {
	s := &wsSocket{
		conn:    conn,
		control: wsutil.ControlFrameHandler(conn, ws.StateServerSide),
	}
	s.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: s.handleControl,
	}
	return s
}

// Send writes one text frame.
func (s *wsSocket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsutil.WriteServerText(s.conn, data)
}

// Close sends a normal closure frame and closes the connection. Only the
// first call has an effect.
func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		_ = ws.WriteFrame(s.conn, frame)
		err = s.conn.Close()
	})
	return err
}

// Read returns the next text message. Control frames are answered and
// binary messages skipped.
func (s *wsSocket) Read() ([]byte, error) {
	for {
		hdr, err := s.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := s.handleControl(hdr, s.reader); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&ws.OpText == 0 {
			if err := s.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(s.reader)
	}
}

func (s *wsSocket) handleControl(hdr ws.Header, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control(hdr, r)
}
