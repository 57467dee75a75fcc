package inspector

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) Message {
	t.Helper()
	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestRewriteScriptParsed(t *testing.T) {
	tests := []struct {
		name            string
		params          string
		cachePrevention string
		wantURL         string
		wantMap         string
		want            urlRewrites
	}{
		{
			name:    "plain_url_untouched",
			params:  `{"url":"http://localhost:8081/index.bundle?platform=ios","sourceMapURL":"http://localhost:8081/index.map"}`,
			wantURL: "http://localhost:8081/index.bundle?platform=ios",
			wantMap: "http://localhost:8081/index.map",
		},
		{
			name:    "emulator_address_in_url",
			params:  `{"url":"http://10.0.2.2:8081/index.bundle","sourceMapURL":""}`,
			wantURL: "http://localhost:8081/index.bundle",
			want:    urlRewrites{originalAddress: "10.0.2.2"},
		},
		{
			name:    "genymotion_address_in_source_map_only",
			params:  `{"url":"","sourceMapURL":"http://10.0.3.2:8081/index.map"}`,
			wantMap: "http://localhost:8081/index.map",
			want:    urlRewrites{originalAddress: "10.0.3.2"},
		},
		{
			name:    "bare_id_gets_file_prefix",
			params:  `{"url":"3f9a","sourceMapURL":"http://localhost/x.map"}`,
			wantURL: "file://3f9a",
			wantMap: "http://localhost/x.map",
			want:    urlRewrites{prependedFilePrefix: true},
		},
		{
			name:    "upper_case_id_is_not_bare",
			params:  `{"url":"ABC","sourceMapURL":""}`,
			wantURL: "ABC",
		},
		{
			name:            "cache_prevention_appended",
			params:          `{"url":"http://localhost/index.bundle?dev=true","sourceMapURL":"http://localhost/index.map"}`,
			cachePrevention: "9",
			wantURL:         "http://localhost/index.bundle?dev=true&cachePrevention=9",
			wantMap:         "http://localhost/index.map?cachePrevention=9",
			want:            urlRewrites{addedCachePrevention: true},
		},
		{
			name:            "cache_prevention_skips_empty_fields",
			params:          `{"url":"","sourceMapURL":""}`,
			cachePrevention: "9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := mustParse(t, `{"method":"Debugger.scriptParsed","params":`+tt.params+`}`)
			out, rw := rewriteScriptParsed(msg, urlRewrites{}, tt.cachePrevention)

			url, _ := out.StringParam("url")
			sourceMap, _ := out.StringParam("sourceMapURL")
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, tt.wantMap, sourceMap)
			assert.Equal(t, tt.want, rw)
		})
	}
}

func TestRewriteScriptParsedKeepsEarlierRewrites(t *testing.T) {
	msg := mustParse(t, `{"method":"Debugger.scriptParsed","params":{"url":"http://localhost/a.js"}}`)
	_, rw := rewriteScriptParsed(msg, urlRewrites{originalAddress: "10.0.2.2", prependedFilePrefix: true}, "")
	assert.Equal(t, urlRewrites{originalAddress: "10.0.2.2", prependedFilePrefix: true}, rw)
}

func TestRestoreBreakpointURL(t *testing.T) {
	tests := []struct {
		name      string
		params    string
		rw        urlRewrites
		wantURL   string
		wantRegex string
	}{
		{
			name:    "nothing_recorded",
			params:  `{"url":"http://localhost/a.js"}`,
			wantURL: "http://localhost/a.js",
		},
		{
			name:      "loopback_restored",
			params:    `{"url":"http://localhost:8081/a.js","urlRegex":"localhost|localhost"}`,
			rw:        urlRewrites{originalAddress: "10.0.2.2"},
			wantURL:   "http://10.0.2.2:8081/a.js",
			wantRegex: "10.0.2.2|10.0.2.2",
		},
		{
			name:    "file_prefix_stripped",
			params:  `{"url":"file://3f9a"}`,
			rw:      urlRewrites{prependedFilePrefix: true},
			wantURL: "3f9a",
		},
		{
			name:    "file_prefix_kept_when_not_added",
			params:  `{"url":"file:///tmp/a.js"}`,
			wantURL: "file:///tmp/a.js",
		},
		{
			name:    "cache_prevention_removed",
			params:  `{"url":"file://3f9a?cachePrevention=12"}`,
			rw:      urlRewrites{prependedFilePrefix: true, addedCachePrevention: true},
			wantURL: "3f9a",
		},
		{
			name:    "page_owned_cache_prevention_kept",
			params:  `{"url":"http://localhost:8081/a.js?cachePrevention=12"}`,
			wantURL: "http://localhost:8081/a.js?cachePrevention=12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := mustParse(t, `{"id":1,"method":"Debugger.setBreakpointByUrl","params":`+tt.params+`}`)
			out := restoreBreakpointURL(msg, tt.rw)
			url, _ := out.StringParam("url")
			regex, _ := out.StringParam("urlRegex")
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, tt.wantRegex, regex)
		})
	}
}

func TestStripCachePrevention(t *testing.T) {
	assert.Equal(t, "http://h/a?x=1", stripCachePrevention("http://h/a?x=1&cachePrevention=7"))
	assert.Equal(t, "http://h/a", stripCachePrevention("http://h/a?cachePrevention=7"))
	assert.Equal(t, "http://h/a?cachePrevention=7&x=1", stripCachePrevention("http://h/a?cachePrevention=7&x=1"))
	assert.Equal(t, "http://h/a", stripCachePrevention("http://h/a"))
}

func TestResponseBodyInterpret(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name string
		body responseBody
		want responseBodyResult
	}{
		{"json_text", responseBody{Data: `{ "z": true, "a": null }`}, responseBodyResult{Body: `{"z":true,"a":null}`}},
		{"json_number_text_kept", responseBody{Data: "{\"n\": 1e3,\n \"m\": 10.0}"}, responseBodyResult{Body: `{"n":1e3,"m":10.0}`}},
		{"json_base64", responseBody{Data: b64(`[1, 2.50, "<x>"]`), Base64Encoded: true}, responseBodyResult{Body: `[1,2.50,"<x>"]`}},
		{"text_base64_kept", responseBody{Data: b64("hello"), Base64Encoded: true}, responseBodyResult{Body: b64("hello"), Base64Encoded: true}},
		{"invalid_base64_kept", responseBody{Data: "%%%", Base64Encoded: true}, responseBodyResult{Body: "%%%", Base64Encoded: true}},
		{"trailing_garbage_kept", responseBody{Data: `{} {}`}, responseBodyResult{Body: `{} {}`}},
		{"plain_text", responseBody{Data: "<html>"}, responseBodyResult{Body: "<html>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.body.interpret())
		})
	}
}

func TestResponseCacheTake(t *testing.T) {
	c, err := newResponseCache(2)
	require.NoError(t, err)

	c.put("a", responseBody{Data: "1"})
	c.put("b", responseBody{Data: "2"})
	c.put("c", responseBody{Data: "3"})

	_, ok := c.take("a")
	assert.False(t, ok, "oldest preview is evicted")

	body, ok := c.take("b")
	require.True(t, ok)
	assert.Equal(t, "2", body.Data)
	_, ok = c.take("b")
	assert.False(t, ok)
	assert.Equal(t, 1, c.len())
}

func TestSourceIndexResolvePath(t *testing.T) {
	s := newSourceIndex(nil, "/project")
	assert.Equal(t, "/project/src/a.js", s.resolvePath("src/a.js"))
	assert.Equal(t, "/abs/b.js", s.resolvePath("/abs/b.js"))
	assert.Equal(t, "/project/c.js", s.resolvePath("./c.js"))
}
