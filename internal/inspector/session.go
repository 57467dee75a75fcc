package inspector

// urlRewrites records the changes applied to script urls on the way to the
// debugger so they can be undone on the way back.
type urlRewrites struct {
	originalAddress      string
	prependedFilePrefix  bool
	addedCachePrevention bool
}

// Session is one attached debugger. The socket and page id are fixed at
// attach time; the rewrite state is owned by the device goroutine.
type Session struct {
	socket Socket
	pageID string

	rewrites urlRewrites
}

// PageID returns the page the debugger attached to, as the debugger sees it.
func (s *Session) PageID() string {
	return s.pageID
}

func (s *Session) targetsReloadablePage() bool {
	return s.pageID == ReloadablePageID
}
