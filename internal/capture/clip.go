package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"github.com/dgnsrekt/inspector_proxy/internal/types"
)

// clipPayload stores frame as the record payload. Frames over maxBytes are
// cut back to a UTF-8 boundary and fingerprinted with the hash and size of
// the full frame. maxBytes <= 0 disables clipping.
func clipPayload(rec *types.TrafficRecord, frame []byte, maxBytes int) {
	if maxBytes <= 0 || len(frame) <= maxBytes {
		rec.PayloadData = string(frame)
		return
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(frame[cut]) {
		cut--
	}
	sum := sha256.Sum256(frame)
	rec.PayloadData = string(frame[:cut])
	rec.Truncated = true
	rec.OriginalSize = len(frame)
	rec.SHA256 = hex.EncodeToString(sum[:])
}
