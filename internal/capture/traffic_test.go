package capture

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/inspector_proxy/internal/storage"
	"github.com/dgnsrekt/inspector_proxy/internal/types"
)

func TestFrameMethod(t *testing.T) {
	tests := []struct {
		name  string
		dir   types.Direction
		frame string
		want  string
	}{
		{"debugger_command", types.DirectionFromDebugger, `{"id":1,"method":"Debugger.enable"}`, "Debugger.enable"},
		{"debugger_reply", types.DirectionToDebugger, `{"id":1,"result":{}}`, ""},
		{"envelope_event", types.DirectionToDevice, `{"event":"connect","payload":{"pageId":"1"}}`, "connect"},
		{"wrapped_method", types.DirectionFromDevice, `{"event":"wrappedEvent","payload":{"pageId":"1","wrappedEvent":"{\"method\":\"Debugger.paused\"}"}}`, "Debugger.paused"},
		{"wrapped_reply", types.DirectionFromDevice, `{"event":"wrappedEvent","payload":{"pageId":"1","wrappedEvent":"{\"id\":4}"}}`, "wrappedEvent"},
		{"garbage", types.DirectionFromDevice, `not json`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := frameMethod(tt.dir, []byte(tt.frame)); got != tt.want {
				t.Fatalf("frameMethod() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrafficRecorderWritesTrace(t *testing.T) {
	dir := t.TempDir()
	registry := storage.NewWriterRegistry(dir, 10, 10)
	rec := NewTrafficRecorder(registry, 16)
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return ts }

	rec.Trace("dev 1", types.DirectionFromDebugger, []byte(`{"id":1,"method":"Debugger.enable"}`))
	rec.Release("dev 1")

	matches, err := filepath.Glob(filepath.Join(dir, "*", "dev_1", storage.TrafficFileName))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one trace file, got %v", matches)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatalf("trace file is empty")
	}
	var got types.TrafficRecord
	if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.DeviceID != "dev 1" || got.Direction != types.DirectionFromDebugger {
		t.Fatalf("unexpected record identity: %+v", got)
	}
	if got.Method != "Debugger.enable" {
		t.Fatalf("expected method Debugger.enable, got %q", got.Method)
	}
	if !got.Truncated || len(got.PayloadData) != 16 || !strings.HasPrefix(got.PayloadData, `{"id":1`) {
		t.Fatalf("expected truncated payload, got %+v", got)
	}
	if got.SHA256 == "" || got.OriginalSize != len(`{"id":1,"method":"Debugger.enable"}`) {
		t.Fatalf("expected hash and original size, got %+v", got)
	}
	if !got.Timestamp.Equal(ts) {
		t.Fatalf("expected timestamp %v, got %v", ts, got.Timestamp)
	}
}
