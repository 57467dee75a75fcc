package inspector

import (
	"regexp"
	"strings"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/debugger"
	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
)

const (
	methodScriptParsed             = string(cdproto.EventDebuggerScriptParsed)
	methodExecutionContextCreated  = string(cdproto.EventRuntimeExecutionContextCreated)
	methodExecutionContextsCleared = string(cdproto.EventRuntimeExecutionContextsCleared)
	methodSetBreakpointByURL       = debugger.CommandSetBreakpointByURL
	methodGetScriptSource          = debugger.CommandGetScriptSource
	methodDebuggerResume           = debugger.CommandResume
	methodDebuggerEnable           = debugger.CommandEnable
	methodRuntimeEnable            = cdpruntime.CommandEnable
	methodGetResponseBody          = network.CommandGetResponseBody
	methodNetworkPreview           = "Expo(Network.receivedResponseBody)"
	methodNetworkPreviewLegacy     = "Network.receivedResponseBody"
	methodReload                   = "reload"
	localhost                      = "localhost"
	filePrefix                     = "file://"
	cachePreventionParam           = "cachePrevention"
)

// emulatorLoopbackAddresses are the host aliases Android emulators use for
// the development machine.
var emulatorLoopbackAddresses = []string{"10.0.2.2", "10.0.3.2"}

// Some runtimes report a bare alphanumeric id instead of a url, and the
// debugger front-end refuses to load source maps for those.
var bareScriptURL = regexp.MustCompile(`^[0-9a-z]+$`)

// bridgeAction tells the caller what to do with a debugger message after the
// interception rules ran.
type bridgeAction int

const (
	actionForward bridgeAction = iota
	actionReply
	actionDrop
)

// replaceLoopback swaps the first emulator address found in s for localhost
// and reports which address it was.
func replaceLoopback(s string) (string, string) {
	var found string
	for _, addr := range emulatorLoopbackAddresses {
		if strings.Contains(s, addr) {
			s = strings.Replace(s, addr, localhost, 1)
			found = addr
		}
	}
	return s, found
}

func appendQueryParam(u, key, value string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + key + "=" + value
}

// stripCachePrevention removes a trailing cache-busting parameter added by
// rewriteScriptParsed.
func stripCachePrevention(u string) string {
	for _, sep := range []string{"&", "?"} {
		if i := strings.LastIndex(u, sep+cachePreventionParam+"="); i >= 0 && !strings.Contains(u[i+1:], "&") {
			return u[:i]
		}
	}
	return u
}

// rewriteScriptParsed applies the device->debugger url rewrites to a
// Debugger.scriptParsed event. cachePrevention is non-empty when the
// session follows the reloadable page.
func rewriteScriptParsed(msg Message, rw urlRewrites, cachePrevention string) (Message, urlRewrites) {
	out := msg
	if sourceMapURL, ok := out.StringParam("sourceMapURL"); ok {
		rewritten, addr := replaceLoopback(sourceMapURL)
		if addr != "" {
			rw.originalAddress = addr
			out = out.WithParam("sourceMapURL", rewritten)
		}
	}
	if url, ok := out.StringParam("url"); ok {
		rewritten, addr := replaceLoopback(url)
		if addr != "" {
			rw.originalAddress = addr
		}
		if bareScriptURL.MatchString(rewritten) {
			rewritten = filePrefix + rewritten
			rw.prependedFilePrefix = true
		}
		if rewritten != url {
			out = out.WithParam("url", rewritten)
		}
	}
	if cachePrevention != "" {
		if sourceMapURL, ok := out.StringParam("sourceMapURL"); ok && sourceMapURL != "" {
			out = out.WithParam("sourceMapURL", appendQueryParam(sourceMapURL, cachePreventionParam, cachePrevention))
		}
		if url, ok := out.StringParam("url"); ok && url != "" {
			out = out.WithParam("url", appendQueryParam(url, cachePreventionParam, cachePrevention))
			rw.addedCachePrevention = true
		}
	}
	return out, rw
}

// restoreBreakpointURL undoes the scriptParsed rewrites on a
// Debugger.setBreakpointByUrl request. A cachePrevention parameter the
// session never added belongs to the page and is left alone.
func restoreBreakpointURL(msg Message, rw urlRewrites) Message {
	out := msg
	if url, ok := out.StringParam("url"); ok {
		restored := url
		if rw.addedCachePrevention {
			restored = stripCachePrevention(restored)
		}
		if rw.originalAddress != "" {
			restored = strings.Replace(restored, localhost, rw.originalAddress, 1)
		}
		if rw.prependedFilePrefix {
			restored = strings.TrimPrefix(restored, filePrefix)
		}
		if restored != url {
			out = out.WithParam("url", restored)
		}
	}
	if rw.originalAddress != "" {
		if urlRegex, ok := out.StringParam("urlRegex"); ok {
			out = out.WithParam("urlRegex", strings.ReplaceAll(urlRegex, localhost, rw.originalAddress))
		}
	}
	return out
}

// networkPreview extracts a response preview from a custom network event.
func networkPreview(msg Message) (string, responseBody, bool) {
	requestID, ok := msg.StringParam("requestId")
	if !ok || requestID == "" {
		return "", responseBody{}, false
	}
	data, _ := msg.StringParam("data")
	encoded, _ := msg.Params["base64Encoded"].(bool)
	return requestID, responseBody{Data: data, Base64Encoded: encoded}, true
}

// processFromDevice runs the device->debugger rules. It returns the message
// to forward and false when the message must not reach the debugger.
func (d *Device) processFromDevice(msg Message) (Message, bool) {
	s := d.session
	switch msg.Method {
	case methodScriptParsed:
		original, _ := msg.StringParam("url")
		var cachePrevention string
		if s.targetsReloadablePage() {
			cachePrevention = d.pages.resolve(s.pageID)
		}
		out, rw := rewriteScriptParsed(msg, s.rewrites, cachePrevention)
		s.rewrites = rw
		if msg.HasParam("url") {
			if scriptID, ok := msg.StringParam("scriptId"); ok {
				d.sources.record(scriptID, original)
			}
		}
		return out, true

	case methodExecutionContextCreated:
		if d.reload == ReloadAwaitingExecutionContext {
			d.completeReload()
		}
		return msg, true

	case methodNetworkPreview, methodNetworkPreviewLegacy:
		if requestID, body, ok := networkPreview(msg); ok {
			d.responses.put(requestID, body)
		}
		return Message{}, false
	}
	return msg, true
}

// processFromDebugger runs the debugger->device rules. With actionReply the
// returned message goes back to the debugger; with actionForward it goes to
// the device; actionDrop discards it.
func (d *Device) processFromDebugger(msg Message) (Message, bridgeAction) {
	s := d.session
	switch msg.Method {
	case methodSetBreakpointByURL:
		return restoreBreakpointURL(msg, s.rewrites), actionForward

	case methodGetScriptSource:
		scriptID, _ := msg.StringParam("scriptId")
		reply, err := newReply(msg.ID, debuggerScriptSource{ScriptSource: d.sources.source(scriptID)})
		if err != nil {
			d.log.Debug("script source reply failed", "script_id", scriptID, "error", err)
			return Message{}, actionDrop
		}
		return reply, actionReply

	case methodGetResponseBody:
		requestID, _ := msg.StringParam("requestId")
		body, ok := d.responses.take(requestID)
		if !ok {
			// The device never captured this request through the standard
			// network domain, so nothing can answer it.
			return Message{}, actionDrop
		}
		reply, err := newReply(msg.ID, body.interpret())
		if err != nil {
			d.log.Debug("response body reply failed", "request_id", requestID, "error", err)
			return Message{}, actionDrop
		}
		return reply, actionReply
	}
	return msg, actionForward
}

type debuggerScriptSource struct {
	ScriptSource string `json:"scriptSource"`
}
