package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/inspector_proxy/internal/inspector"
	"github.com/dgnsrekt/inspector_proxy/internal/types"
)

const (
	pagesTimeout         = 2 * time.Second
	faviconURL           = "https://reactjs.org/favicon.ico"
	devtoolsFrontendBase = "devtools://devtools/bundled/js_app.html?experiments=true&v8only=true&ws="
	pageType             = "node"
)

var versionInfo = types.VersionInfo{
	Browser:         "Mobile JavaScript",
	ProtocolVersion: "1.1",
}

type pageListOutput struct {
	Body []types.PageDescription
}

type versionOutput struct {
	Body types.VersionInfo
}

func registerDiscoveryHandlers(api huma.API, s *Server) {
	listPages := func(ctx context.Context, input *struct{}) (*pageListOutput, error) {
		return &pageListOutput{Body: s.describePages(ctx, requestHost(ctx))}, nil
	}
	huma.Register(api, huma.Operation{OperationID: "list-pages", Method: http.MethodGet, Path: "/json", Summary: "List inspectable pages", Tags: []string{"Discovery"}}, listPages)
	huma.Register(api, huma.Operation{OperationID: "list-pages-alias", Method: http.MethodGet, Path: "/json/list", Summary: "List inspectable pages", Tags: []string{"Discovery"}}, listPages)

	huma.Register(api, huma.Operation{OperationID: "version", Method: http.MethodGet, Path: "/json/version", Summary: "Protocol version", Tags: []string{"Discovery"}},
		func(ctx context.Context, input *struct{}) (*versionOutput, error) {
			return &versionOutput{Body: versionInfo}, nil
		})
}

// describePages lists every page of every connected device. Devices that go
// away or do not answer in time are left out.
func (s *Server) describePages(ctx context.Context, host string) []types.PageDescription {
	out := make([]types.PageDescription, 0)
	for _, dev := range s.snapshot() {
		pctx, cancel := context.WithTimeout(ctx, pagesTimeout)
		pages, err := dev.Pages(pctx)
		cancel()
		if err != nil {
			if !errors.Is(err, inspector.ErrDeviceClosed) {
				slog.Warn("page list unavailable", "device_id", dev.ID(), "error", err)
			}
			continue
		}
		for _, p := range pages {
			out = append(out, describePage(host, dev, p))
		}
	}
	return out
}

func describePage(host string, dev *inspector.Device, p types.Page) types.PageDescription {
	debuggerAddr := host + debuggerPath + "?device=" + url.QueryEscape(dev.ID()) + "&page=" + url.QueryEscape(p.ID)
	return types.PageDescription{
		ID:                   dev.ID() + "-" + p.ID,
		Description:          dev.App(),
		Title:                p.Title,
		FaviconURL:           faviconURL,
		DevtoolsFrontendURL:  devtoolsFrontendBase + url.QueryEscape(debuggerAddr),
		Type:                 pageType,
		WebSocketDebuggerURL: "ws://" + debuggerAddr,
		VM:                   p.VM,
		DeviceName:           dev.Name(),
	}
}
