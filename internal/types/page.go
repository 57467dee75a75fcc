package types

// Page is an inspectable context reported by a device on every discovery tick.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	VM    string `json:"vm"`
	App   string `json:"app"`
}

// PageDescription is the discovery entry served on /json and /json/list.
// Field names follow the Chrome remote debugging target list.
type PageDescription struct {
	ID                   string `json:"id"`
	Description          string `json:"description"`
	Title                string `json:"title"`
	FaviconURL           string `json:"faviconUrl"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl"`
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	VM                   string `json:"vm"`
	DeviceName           string `json:"deviceName,omitempty"`
}

// VersionInfo is served on /json/version.
type VersionInfo struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
}
