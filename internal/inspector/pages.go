package inspector

import (
	"slices"
	"strings"

	"github.com/dgnsrekt/inspector_proxy/internal/types"
)

const (
	// ReloadablePageID is the synthetic page a debugger attaches to in order to
	// follow the application page across reloads.
	ReloadablePageID = "-1"

	reloadablePageTitle = "React Native Experimental (Improved Chrome Reloads)"
	reloadablePageVM    = "don't use"

	// appPageMarker identifies the application page by title.
	appPageMarker = "React"
)

// pageRegistry holds the last reported page list and the tracked application
// page. Owned by the device goroutine.
type pageRegistry struct {
	app     string
	pages   []types.Page
	appPage *types.Page
}

func newPageRegistry(app string) *pageRegistry {
	return &pageRegistry{app: app}
}

func isAppPage(p types.Page) bool {
	return strings.Contains(p.Title, appPageMarker)
}

// replace stores the reported list and returns the first application page
// whose id differs from the tracked one, if any. The tracked id is not
// changed here; callers run the reload handling first and then call track.
func (r *pageRegistry) replace(reported []types.Page) (types.Page, bool) {
	r.pages = slices.Clone(reported)
	for _, p := range r.pages {
		if !isAppPage(p) {
			continue
		}
		if r.appPage == nil || r.appPage.ID != p.ID {
			return p, true
		}
	}
	return types.Page{}, false
}

func (r *pageRegistry) track(p types.Page) {
	r.appPage = &p
}

// appPageID returns the tracked application page id.
func (r *pageRegistry) appPageID() (string, bool) {
	if r.appPage == nil {
		return "", false
	}
	return r.appPage.ID, true
}

func (r *pageRegistry) hasAppPage() bool {
	return r.appPage != nil
}

// list returns the reported pages plus the synthetic reloadable page once an
// application page has been seen.
func (r *pageRegistry) list() []types.Page {
	out := make([]types.Page, 0, len(r.pages)+1)
	out = append(out, r.pages...)
	if r.appPage != nil {
		out = append(out, types.Page{
			ID:    ReloadablePageID,
			Title: reloadablePageTitle,
			VM:    reloadablePageVM,
			App:   r.app,
		})
	}
	return out
}

// resolve maps the synthetic page id to the current application page id.
func (r *pageRegistry) resolve(pageID string) string {
	if pageID == ReloadablePageID && r.appPage != nil {
		return r.appPage.ID
	}
	return pageID
}
