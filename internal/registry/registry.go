package registry

import (
	"fmt"
	"sync"

	"github.com/softcask/filetrack/internal/callsite"
	"github.com/softcask/filetrack/internal/errors"
	"github.com/softcask/filetrack/internal/event"
	"github.com/softcask/filetrack/internal/logging"
	"github.com/softcask/filetrack/internal/store"
)

// Registry owns the two associative indices and enforces the entry state
// machine. Create instances with New; the zero value is not usable.
type Registry struct {
	mu      sync.Mutex
	handles *store.Store[Handle, *Entry] // handle -> entry
	names   *store.Store[string, Handle] // filename -> most recent handle

	log      *logging.Logger
	bus      *event.Bus
	capacity int
	trials   int

	// Side channel for polling-style callers: the most recent failing
	// operation. Successful operations leave it untouched.
	lastOp  string
	lastErr error
}

// New creates a Registry. The backing indices are created lazily on first
// use, under the same lock that serializes all operations.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:      logging.NopLogger(),
		capacity: DefaultStoreCapacity,
		trials:   DefaultStoreTrials,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ensureInit creates the backing indices if needed. Must be called with
// the lock held. Exhausting the bounded retry is unrecoverable resource
// exhaustion and panics rather than leaving the registry half-built.
func (r *Registry) ensureInit() {
	if r.handles == nil {
		for i := 0; i < r.trials; i++ {
			h, err := store.New[Handle, *Entry](r.capacity)
			if err == nil {
				r.handles = h
				break
			}
		}
		if r.handles == nil {
			panic("filetrack: failed to initialize handle index")
		}
	}
	if r.names == nil {
		for i := 0; i < r.trials; i++ {
			n, err := store.New[string, Handle](r.capacity)
			if err == nil {
				r.names = n
				break
			}
		}
		if r.names == nil {
			// Degraded: handle tracking still works, removability
			// checks fail open.
			r.recordFailure("init", errors.ErrStoreInconsistent)
			r.log.WithOp("init").Error("failed to initialize filename index")
		}
	}
}

// recordFailure updates the side channel. Must be called with the lock held.
func (r *Registry) recordFailure(op string, err error) {
	r.lastOp = op
	r.lastErr = err
}

// LastFailure returns the most recent failing operation name and its error.
// Successful operations never clear a prior failure.
func (r *Registry) LastFailure() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastOp, r.lastErr
}

// RecordFailure updates the side channel on behalf of the façade, which
// reports primitive and argument failures through the same channel as
// registry failures.
func (r *Registry) RecordFailure(op string, err error) {
	r.mu.Lock()
	r.recordFailure(op, err)
	r.mu.Unlock()
}

// publish dispatches events after the lock has been released.
func (r *Registry) publish(events ...event.Event) {
	if r.bus == nil {
		return
	}
	for _, e := range events {
		r.bus.Publish(e)
	}
}

// bounded copies s cut at max bytes, reporting whether it was truncated.
func bounded(s string, max int) (string, bool) {
	if max >= 0 && len(s) > max {
		return s[:max], true
	}
	return s, false
}

// Add registers a newly opened handle. The handle must be non-nil and
// nameLenMax positive; violations are recorded and leave the registry
// unchanged. A reused handle identity overwrites the stale entry. Unless
// mode is the temp-file sentinel, the filename index is updated too,
// last-writer-wins on name collision.
//
// Truncated copies are still inserted so the handle stays trackable; the
// truncation is flagged on the entry and reported as an anomaly.
func (r *Registry) Add(h Handle, kind OpenKind, filename, mode string, nameLenMax int, site callsite.Site) error {
	const op = "entry_add"

	if h == nil {
		return r.failf(op, errors.ErrInvalidArgument, site, "handle is nil, file cannot be tracked")
	}
	if nameLenMax < 1 {
		return r.failf(op, errors.ErrInvalidArgument, site, "nameLenMax must be at least 1")
	}

	if filename == "" {
		filename = UnknownName
		nameLenMax = UnknownNameLenMax
	}

	r.mu.Lock()
	r.ensureInit()

	name, nameTrunc := bounded(filename, nameLenMax)
	modeCopy, modeTrunc := bounded(mode, ModeLenMax)

	entry := &Entry{
		Handle:        h,
		Filename:      name,
		Mode:          modeCopy,
		OpenKind:      kind,
		Closed:        false,
		CloseKind:     CloseNone,
		NameTruncated: nameTrunc,
		OpenSite:      site,
	}

	if !r.handles.Set(h, entry) {
		r.recordFailure(op, errors.ErrShutDown)
		r.mu.Unlock()
		r.log.WithOp(op).WithFile(name).Error("failed to add entry", "site", site.String())
		return errors.NewTrackError(op, errors.ErrShutDown, site)
	}

	var events []event.Event
	events = append(events, event.NewHandleOpenedEvent(name, modeCopy, kind.String(), site))

	// Anonymous temp files have no usable name and never enter the
	// filename index.
	if modeCopy != TempModeSentinel && r.names != nil {
		r.names.Set(name, h)
	}

	if nameTrunc || modeTrunc {
		r.recordFailure(op, errors.ErrNameTruncated)
		events = append(events, event.NewAnomalyEvent(op,
			fmt.Sprintf("copy of %q truncated at length bound", filename), site))
	}
	r.mu.Unlock()

	if nameTrunc || modeTrunc {
		r.log.WithOp(op).WithFile(name).Warn("name or mode truncated at length bound",
			"site", site.String())
	}
	r.log.WithOp(op).WithFile(name).Debug("tracking handle",
		"mode", modeCopy, "kind", kind.String(), "site", site.String())

	r.publish(events...)
	return nil
}

// UpdateMode applies a mode-change reopen to an existing open entry: the
// owned mode copy is replaced and last-mode-change provenance recorded,
// state stays Open. If the handle is untracked the anomaly is logged, a
// synthetic "unknown" entry is inserted so tracking can continue in
// degraded form, and ErrUntrackedHandle is returned.
func (r *Registry) UpdateMode(h Handle, mode string, site callsite.Site) error {
	const op = "entry_update"

	if h == nil {
		return r.failf(op, errors.ErrInvalidArgument, site, "handle is nil, mode cannot be updated")
	}

	r.mu.Lock()
	r.ensureInit()

	entry, ok := r.handles.Get(h)
	if !ok {
		r.recordFailure(op, errors.ErrUntrackedHandle)
		r.mu.Unlock()
		r.log.WithOp(op).Warn("no entry found to update, the handle might not be tracked",
			"site", site.String())
		r.publish(event.NewAnomalyEvent(op, "mode change on untracked handle", site))

		// Best-effort degraded tracking: record what we do know.
		if err := r.Add(h, OpenUnknown, UnknownName, mode, UnknownNameLenMax, site); err != nil {
			return err
		}
		return errors.NewTrackError(op, errors.ErrUntrackedHandle, site)
	}

	modeCopy, modeTrunc := bounded(mode, ModeLenMax)
	entry.Mode = modeCopy
	entry.ModeChangeSite = site
	filename := entry.Filename
	if modeTrunc {
		r.recordFailure(op, errors.ErrNameTruncated)
	}
	r.mu.Unlock()

	r.log.WithOp(op).WithFile(filename).Debug("mode changed",
		"mode", modeCopy, "site", site.String())
	r.publish(event.NewHandleModeChangedEvent(filename, modeCopy, site))
	return nil
}

// Close transitions an entry to Closed, recording the classification and
// close-site provenance. An untracked handle is a logged anomaly and a
// no-op (no synthetic insert, unlike UpdateMode). A second close is
// rejected with a DoubleCloseError carrying both provenance records; the
// original close provenance is left unmodified.
func (r *Registry) Close(h Handle, kind CloseKind, site callsite.Site) error {
	const op = "entry_close"

	if h == nil {
		return r.failf(op, errors.ErrInvalidArgument, site, "handle is nil, file cannot be closed")
	}

	r.mu.Lock()
	r.ensureInit()

	entry, ok := r.handles.Get(h)
	if !ok {
		r.recordFailure(op, errors.ErrUntrackedHandle)
		r.mu.Unlock()
		r.log.WithOp(op).Warn("no entry found to close, the handle might not be tracked",
			"site", site.String())
		r.publish(event.NewAnomalyEvent(op, "close of untracked handle", site))
		return errors.NewTrackError(op, errors.ErrUntrackedHandle, site)
	}

	if entry.Closed {
		dce := errors.NewDoubleCloseError(entry.CloseSite, site)
		r.recordFailure(op, dce)
		filename := entry.Filename
		firstClose := entry.CloseSite
		r.mu.Unlock()
		r.log.WithOp(op).WithFile(filename).Error("file already closed",
			"close_site", firstClose.String(), "reclose_site", site.String())
		r.publish(event.NewDoubleCloseEvent(filename, firstClose, site))
		return errors.NewTrackError(op, dce, site)
	}

	entry.Closed = true
	entry.CloseKind = kind
	entry.CloseSite = site
	filename := entry.Filename
	r.mu.Unlock()

	r.log.WithOp(op).WithFile(filename).Debug("handle closed",
		"kind", kind.String(), "site", site.String())
	r.publish(event.NewHandleClosedEvent(filename, kind.String(), site))
	return nil
}

// CanRemove is the read-only check consulted before a delete-by-name. It
// permits removal when nothing is tracked under the name, when the most
// recent handle under the name is closed, and (fail-open, with the
// structural inconsistency reported) when the filename index references a
// handle the handle index has no entry for. It refuses only when the
// referenced handle is still open.
func (r *Registry) CanRemove(filename string, nameLenMax int, site callsite.Site) error {
	const op = "remove_check"

	name, _ := bounded(filename, nameLenMax)

	r.mu.Lock()
	if r.names == nil {
		// Never initialized: nothing has ever been tracked.
		r.mu.Unlock()
		return nil
	}

	h, ok := r.names.Get(name)
	if !ok {
		r.mu.Unlock()
		return nil
	}

	entry, ok := r.handles.Get(h)
	if !ok {
		r.recordFailure(op, errors.ErrStoreInconsistent)
		r.mu.Unlock()
		r.log.WithOp(op).WithFile(name).Error(
			"filename index references a handle with no entry", "site", site.String())
		r.publish(event.NewAnomalyEvent(op,
			fmt.Sprintf("filename index for %q references a missing entry", name), site))
		return nil // reported, but removal proceeds
	}

	if entry.Closed {
		r.mu.Unlock()
		return nil
	}

	r.recordFailure(op, errors.ErrStillOpen)
	r.mu.Unlock()
	r.log.WithOp(op).WithFile(name).Warn("file is still open and cannot be removed",
		"site", site.String())
	r.publish(event.NewRemoveRefusedEvent(name, site))
	return errors.NewTrackError(op, errors.ErrStillOpen, site)
}

// OpenByName returns a copy of the entry most recently opened under name,
// if that entry is still open. A read-only probe with no side effects;
// dangling filename-index references read as "not open".
func (r *Registry) OpenByName(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names == nil || r.handles == nil {
		return Entry{}, false
	}
	h, ok := r.names.Get(name)
	if !ok {
		return Entry{}, false
	}
	entry, ok := r.handles.Get(h)
	if !ok || entry.Closed {
		return Entry{}, false
	}
	return *entry, true
}

// Lookup returns a copy of the entry for h, if tracked.
func (r *Registry) Lookup(h Handle) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handles == nil {
		return Entry{}, false
	}
	entry, ok := r.handles.Get(h)
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Snapshot returns copies of all current entries. Order is unspecified.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handles == nil {
		return nil
	}
	ptrs := r.handles.Snapshot()
	out := make([]Entry, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out
}

// Len returns the number of tracked entries, closed entries included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handles == nil {
		return 0
	}
	return r.handles.Len()
}

// failf records an invalid-argument style failure and returns the typed
// error. Used for precondition violations that abort before side effects.
func (r *Registry) failf(op string, sentinel error, site callsite.Site, msg string) error {
	r.mu.Lock()
	r.recordFailure(op, sentinel)
	r.mu.Unlock()
	r.log.WithOp(op).Error(msg, "site", site.String())
	return errors.NewTrackError(op, sentinel, site)
}
