package event

import (
	"time"

	"github.com/softcask/filetrack/internal/callsite"
)

// Event is the interface all published events implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "handle.opened", "handle.leaked").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides the common fields. Embed it in concrete event types.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Handle lifecycle events
// -----------------------------------------------------------------------------

// HandleOpenedEvent is emitted when the registry starts tracking a handle.
type HandleOpenedEvent struct {
	baseEvent
	Filename string        // best-effort name, "unknown" for temp files
	Mode     string        // access mode the handle was opened with
	OpenKind string        // classification: open, tempfile, reopen, unknown
	Site     callsite.Site // where the open was requested
}

// NewHandleOpenedEvent creates a HandleOpenedEvent.
func NewHandleOpenedEvent(filename, mode, openKind string, site callsite.Site) HandleOpenedEvent {
	return HandleOpenedEvent{
		baseEvent: newBaseEvent("handle.opened"),
		Filename:  filename,
		Mode:      mode,
		OpenKind:  openKind,
		Site:      site,
	}
}

// HandleModeChangedEvent is emitted when a mode-change reopen updates a
// tracked entry in place.
type HandleModeChangedEvent struct {
	baseEvent
	Filename string
	Mode     string // the new mode
	Site     callsite.Site
}

// NewHandleModeChangedEvent creates a HandleModeChangedEvent.
func NewHandleModeChangedEvent(filename, mode string, site callsite.Site) HandleModeChangedEvent {
	return HandleModeChangedEvent{
		baseEvent: newBaseEvent("handle.mode_changed"),
		Filename:  filename,
		Mode:      mode,
		Site:      site,
	}
}

// HandleClosedEvent is emitted when a tracked entry transitions to closed.
type HandleClosedEvent struct {
	baseEvent
	Filename  string
	CloseKind string // classification: close, reopen, unknown
	Site      callsite.Site
}

// NewHandleClosedEvent creates a HandleClosedEvent.
func NewHandleClosedEvent(filename, closeKind string, site callsite.Site) HandleClosedEvent {
	return HandleClosedEvent{
		baseEvent: newBaseEvent("handle.closed"),
		Filename:  filename,
		CloseKind: closeKind,
		Site:      site,
	}
}

// DoubleCloseEvent is emitted when a close is applied to an entry that was
// already closed. Both provenance records are carried.
type DoubleCloseEvent struct {
	baseEvent
	Filename   string
	FirstClose callsite.Site // where the entry was originally closed
	Reclose    callsite.Site // where the rejected re-close was attempted
}

// NewDoubleCloseEvent creates a DoubleCloseEvent.
func NewDoubleCloseEvent(filename string, firstClose, reclose callsite.Site) DoubleCloseEvent {
	return DoubleCloseEvent{
		baseEvent:  newBaseEvent("handle.double_close"),
		Filename:   filename,
		FirstClose: firstClose,
		Reclose:    reclose,
	}
}

// HandleLeakedEvent is emitted by the shutdown sweep for every entry still
// open when the registry shuts down. Exactly one is published per leak.
type HandleLeakedEvent struct {
	baseEvent
	Filename string
	Mode     string
	OpenKind string
	OpenSite callsite.Site
}

// NewHandleLeakedEvent creates a HandleLeakedEvent.
func NewHandleLeakedEvent(filename, mode, openKind string, openSite callsite.Site) HandleLeakedEvent {
	return HandleLeakedEvent{
		baseEvent: newBaseEvent("handle.leaked"),
		Filename:  filename,
		Mode:      mode,
		OpenKind:  openKind,
		OpenSite:  openSite,
	}
}

// -----------------------------------------------------------------------------
// Registry anomaly events
// -----------------------------------------------------------------------------

// AnomalyEvent is emitted for protocol anomalies the registry tolerates:
// operations on untracked handles, dangling filename-index references,
// and truncated name copies.
type AnomalyEvent struct {
	baseEvent
	Op     string // registry operation that observed the anomaly
	Detail string // human-readable description
	Site   callsite.Site
}

// NewAnomalyEvent creates an AnomalyEvent.
func NewAnomalyEvent(op, detail string, site callsite.Site) AnomalyEvent {
	return AnomalyEvent{
		baseEvent: newBaseEvent("registry.anomaly"),
		Op:        op,
		Detail:    detail,
		Site:      site,
	}
}

// RemoveRefusedEvent is emitted when a delete-by-name is refused because
// the file's most recent handle is still open.
type RemoveRefusedEvent struct {
	baseEvent
	Filename string
	Site     callsite.Site
}

// NewRemoveRefusedEvent creates a RemoveRefusedEvent.
func NewRemoveRefusedEvent(filename string, site callsite.Site) RemoveRefusedEvent {
	return RemoveRefusedEvent{
		baseEvent: newBaseEvent("remove.refused"),
		Filename:  filename,
		Site:      site,
	}
}

// -----------------------------------------------------------------------------
// Watch events
// -----------------------------------------------------------------------------

// ExternalChangeEvent is emitted by the watch detector when a file is
// modified or removed on disk while the registry still has an open handle
// tracked under that name.
type ExternalChangeEvent struct {
	baseEvent
	Filename string
	Op       string // "write", "remove", "rename", "chmod"
}

// NewExternalChangeEvent creates an ExternalChangeEvent.
func NewExternalChangeEvent(filename, op string) ExternalChangeEvent {
	return ExternalChangeEvent{
		baseEvent: newBaseEvent("watch.external_change"),
		Filename:  filename,
		Op:        op,
	}
}
