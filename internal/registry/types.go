package registry

import (
	"io"

	"github.com/softcask/filetrack/internal/callsite"
	"github.com/softcask/filetrack/internal/event"
	"github.com/softcask/filetrack/internal/logging"
)

// Handle is the opaque identity of an underlying file stream. Any
// comparable io.Closer works as a key; the façade supplies *track.File.
// Handle identities may be reused by the runtime after close, so the
// registry overwrites rather than rejects on key collision.
type Handle io.Closer

// Registry defaults and sentinels.
const (
	// DefaultStoreCapacity is the initial capacity of each index.
	DefaultStoreCapacity = 64
	// DefaultStoreTrials bounds the retry loop when creating the indices.
	DefaultStoreTrials = 4
	// ModeLenMax bounds every stored copy of a mode string.
	ModeLenMax = 16
	// UnknownName is the filename sentinel for handles with no
	// discoverable name.
	UnknownName = "unknown"
	// UnknownNameLenMax is the length bound applied to UnknownName copies.
	UnknownNameLenMax = 8
	// TempModeSentinel is the mode recorded for anonymous temp files.
	// Entries carrying it are never inserted into the filename index.
	TempModeSentinel = "(tmpfile)"
)

// OpenKind classifies how a handle was opened.
type OpenKind int

const (
	OpenNone OpenKind = iota
	OpenOpen
	OpenTempFile
	OpenReopen
	OpenUnknown
)

var openKindNames = [...]string{
	OpenNone:     "not_open",
	OpenOpen:     "open",
	OpenTempFile: "tempfile",
	OpenReopen:   "reopen",
	OpenUnknown:  "unknown",
}

// String returns the classification name.
func (k OpenKind) String() string {
	if k < 0 || int(k) >= len(openKindNames) {
		return "unknown"
	}
	return openKindNames[k]
}

// CloseKind classifies how a handle was closed.
type CloseKind int

const (
	CloseNone CloseKind = iota
	CloseClose
	CloseReopen
	CloseUnknown
)

var closeKindNames = [...]string{
	CloseNone:    "not_closed",
	CloseClose:   "close",
	CloseReopen:  "reopen",
	CloseUnknown: "unknown",
}

// String returns the classification name.
func (k CloseKind) String() string {
	if k < 0 || int(k) >= len(closeKindNames) {
		return "unknown"
	}
	return closeKindNames[k]
}

// Entry is the registry record describing one handle's tracked lifecycle.
// Closed is true iff CloseKind != CloseNone.
type Entry struct {
	Handle        Handle
	Filename      string // bounded copy, UnknownName when not discoverable
	Mode          string // bounded copy of the access mode
	OpenKind      OpenKind
	CloseKind     CloseKind
	Closed        bool
	NameTruncated bool // the filename copy was cut at its length bound

	OpenSite       callsite.Site
	ModeChangeSite callsite.Site // zero until a mode-change reopen
	CloseSite      callsite.Site
}

// Open reports whether the entry is tracked and not yet closed.
func (e *Entry) Open() bool { return !e.Closed }

// Leak describes one handle found still open by the shutdown sweep.
type Leak struct {
	Filename string
	Mode     string
	OpenKind OpenKind
	OpenSite callsite.Site
	CloseErr error // result of the forced close, nil on success
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithBus sets the event bus lifecycle events are published to.
// Without a bus, events are dropped.
func WithBus(bus *event.Bus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithCapacity sets the initial capacity of the backing indices.
func WithCapacity(capacity int) Option {
	return func(r *Registry) {
		if capacity > 0 {
			r.capacity = capacity
		}
	}
}

// WithTrials bounds the retry loop for index initialization.
func WithTrials(trials int) Option {
	return func(r *Registry) {
		if trials > 0 {
			r.trials = trials
		}
	}
}
