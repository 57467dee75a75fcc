package inspector

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultNetworkCacheSize bounds the number of response previews held per device.
const DefaultNetworkCacheSize = 1024

// responseBody is a captured network response preview.
type responseBody struct {
	Data          string
	Base64Encoded bool
}

// responseBodyResult is the Network.getResponseBody result shape.
type responseBodyResult struct {
	Body          string `json:"body"`
	Base64Encoded bool   `json:"base64Encoded"`
}

// responseCache holds previews until the debugger fetches them once.
type responseCache struct {
	entries *lru.Cache[string, responseBody]
}

func newResponseCache(size int) (*responseCache, error) {
	if size <= 0 {
		size = DefaultNetworkCacheSize
	}
	c, err := lru.New[string, responseBody](size)
	if err != nil {
		return nil, err
	}
	return &responseCache{entries: c}, nil
}

func (c *responseCache) put(requestID string, body responseBody) {
	c.entries.Add(requestID, body)
}

// take returns and removes the preview for requestID.
func (c *responseCache) take(requestID string) (responseBody, bool) {
	body, ok := c.entries.Peek(requestID)
	if ok {
		c.entries.Remove(requestID)
	}
	return body, ok
}

func (c *responseCache) len() int {
	return c.entries.Len()
}

func (c *responseCache) purge() {
	c.entries.Purge()
}

// interpret returns JSON payloads as compact JSON text, decoding base64
// first when flagged. Key order and number text are kept as the device sent
// them. Anything else is returned as captured.
func (b responseBody) interpret() responseBodyResult {
	raw := []byte(b.Data)
	if b.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(b.Data)
		if err != nil {
			return responseBodyResult{Body: b.Data, Base64Encoded: true}
		}
		raw = decoded
	}

	if !json.Valid(raw) {
		return responseBodyResult{Body: b.Data, Base64Encoded: b.Base64Encoded}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return responseBodyResult{Body: b.Data, Base64Encoded: b.Base64Encoded}
	}
	return responseBodyResult{Body: compact.String(), Base64Encoded: false}
}
