package inspector

import (
	"github.com/dgnsrekt/inspector_proxy/internal/types"
)

// bootstrapCommandID is the request id used for the enable commands replayed
// on a reloaded page. Replies carrying it are forwarded like any other.
const bootstrapCommandID = 1e9

// ReloadState tracks the two-phase handshake that moves a debugger attached
// to the reloadable page onto a freshly created application page.
type ReloadState int

const (
	// ReloadIdle means no reload is in progress.
	ReloadIdle ReloadState = iota
	// ReloadAwaitingExecutionContext means connect and enable were replayed
	// and the device has not yet reported the new execution context.
	ReloadAwaitingExecutionContext
)

func (s ReloadState) String() string {
	switch s {
	case ReloadIdle:
		return "idle"
	case ReloadAwaitingExecutionContext:
		return "awaiting_execution_context"
	default:
		return "unknown"
	}
}

// onNewAppPage handles a newly reported application page. Without a debugger
// on the reloadable page the id is just tracked; otherwise the session is
// moved to the new page and the handshake starts.
func (d *Device) onNewAppPage(page types.Page) {
	oldID, hadOld := d.pages.appPageID()
	d.log.Debug("application page updated", "page_id", page.ID, "previous_page_id", oldID)
	d.notify(LifecycleAppPageChanged, page.ID)

	if d.session == nil || !d.session.targetsReloadablePage() {
		d.pages.track(page)
		return
	}

	if hadOld {
		d.sendToDevice(types.EventDisconnect, types.PagePayload{PageID: oldID})
	}
	d.pages.track(page)
	d.sendToDevice(types.EventConnect, types.PagePayload{PageID: page.ID})
	for _, method := range []string{methodRuntimeEnable, methodDebuggerEnable} {
		d.sendWrapped(page.ID, newCommand(bootstrapCommandID, method))
	}
	d.reload = ReloadAwaitingExecutionContext
}

// completeReload finishes the handshake once the new execution context
// exists: the debugger drops its stale contexts and reapplies breakpoints,
// then the VM, which starts paused, is resumed.
func (d *Device) completeReload() {
	d.sendToDebugger(newNotification(methodExecutionContextsCleared))
	d.sendWrapped(d.pages.resolve(d.session.pageID), newCommand(0, methodDebuggerResume))
	d.reload = ReloadIdle
	d.notify(LifecycleReloadCompleted, d.pages.resolve(d.session.pageID))
}
