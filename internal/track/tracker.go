// Package track is the wrapped-operation façade around the real file
// primitives. Each operation validates its arguments, performs the
// underlying open/reopen/close/remove, and records the outcome in the
// tracking registry, capturing the caller's site for provenance.
package track

import (
	"os"

	"github.com/softcask/filetrack/internal/callsite"
	"github.com/softcask/filetrack/internal/errors"
	"github.com/softcask/filetrack/internal/logging"
	"github.com/softcask/filetrack/internal/registry"
)

// Façade operation names, recorded on the side channel and in logs.
const (
	opOpen     = "filetrack_fopen"
	opTempFile = "filetrack_tmpfile"
	opReopen   = "filetrack_freopen"
	opClose    = "filetrack_fclose"
	opRemove   = "filetrack_remove"
)

// DefaultNameLenMax bounds stored filename copies when no explicit bound
// is configured.
const DefaultNameLenMax = 4096

// Tracker pairs the real file primitives with a Registry.
type Tracker struct {
	reg        *registry.Registry
	log        *logging.Logger
	nameLenMax int
	perm       os.FileMode
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// WithNameLenMax bounds stored filename copies.
func WithNameLenMax(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.nameLenMax = n
		}
	}
}

// NewTracker creates a Tracker recording into reg.
func NewTracker(reg *registry.Registry, opts ...Option) *Tracker {
	t := &Tracker{
		reg:        reg,
		log:        logging.NopLogger(),
		nameLenMax: DefaultNameLenMax,
		perm:       0644,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Registry returns the registry this tracker records into.
func (t *Tracker) Registry() *registry.Registry { return t.reg }

// Open opens name with a C-stdio style mode string and tracks the
// resulting handle. On primitive failure no entry is registered.
func (t *Tracker) Open(name, mode string) (*File, error) {
	return t.openAt(name, mode, callsite.Capture(1))
}

func (t *Tracker) openAt(name, mode string, site callsite.Site) (*File, error) {
	if name == "" {
		return nil, t.reject(opOpen, "filename is empty, no processing was done", site)
	}
	flags, err := parseMode(mode)
	if err != nil {
		return nil, t.reject(opOpen, "mode is invalid, no processing was done", site)
	}

	inner, err := os.OpenFile(name, flags, t.perm)
	if err != nil {
		t.reg.RecordFailure(opOpen, err)
		t.log.WithOp(opOpen).WithFile(name).Error("failed to open file",
			"mode", mode, "site", site.String())
		return nil, errors.NewTrackError(opOpen, err, site)
	}

	f := &File{inner: inner}
	if err := t.reg.Add(f, registry.OpenOpen, name, mode, t.nameLenMax, site); err != nil {
		t.log.WithOp(opOpen).WithFile(name).Warn("open succeeded but tracking failed",
			"error", err)
	}
	return f, nil
}

// TempFile creates an anonymous temporary file and tracks it. Temp handles
// carry the "unknown" filename sentinel and never enter the filename index.
func (t *Tracker) TempFile() (*File, error) {
	return t.tempFileAt(callsite.Capture(1))
}

func (t *Tracker) tempFileAt(site callsite.Site) (*File, error) {
	inner, err := os.CreateTemp("", "filetrack-")
	if err != nil {
		t.reg.RecordFailure(opTempFile, err)
		t.log.WithOp(opTempFile).Error("failed to create a temporary file",
			"site", site.String())
		return nil, errors.NewTrackError(opTempFile, err, site)
	}

	f := &File{inner: inner}
	if err := t.reg.Add(f, registry.OpenTempFile, registry.UnknownName,
		registry.TempModeSentinel, registry.UnknownNameLenMax, site); err != nil {
		t.log.WithOp(opTempFile).Warn("temp file created but tracking failed", "error", err)
	}
	return f, nil
}

// Reopen reopens a tracked handle. With an empty name it is a mode change:
// the underlying stream is reopened under its own name with the new mode
// and the handle identity is unchanged. With a non-empty name the old
// handle's entry is closed (classification reopen) and a new handle is
// returned and tracked (classification reopen).
//
// Standard streams are redirected but never tracked. If the primitive
// fails, the old handle is recorded as closed regardless; the old stream
// is no longer valid either way.
func (t *Tracker) Reopen(name, mode string, f *File) (*File, error) {
	return t.reopenAt(name, mode, f, callsite.Capture(1))
}

func (t *Tracker) reopenAt(name, mode string, f *File, site callsite.Site) (*File, error) {
	if f == nil {
		return nil, t.reject(opReopen, "stream is nil, no processing was done", site)
	}
	flags, err := parseMode(mode)
	if err != nil {
		return nil, t.reject(opReopen, "mode is invalid, no processing was done", site)
	}

	target := name
	if target == "" {
		target = f.Name()
		if target == "" {
			return nil, t.reject(opReopen, "stream has no name to reopen under", site)
		}
	}

	inner, err := os.OpenFile(target, flags, t.perm)
	if err != nil {
		t.reg.RecordFailure(opReopen, err)
		t.log.WithOp(opReopen).WithFile(target).Error("failed to reopen file",
			"mode", mode, "site", site.String())
		if !f.std {
			// The old stream is dead no matter what the new open did.
			_ = f.Close()
			_ = t.reg.Close(f, registry.CloseReopen, site)
		}
		return nil, errors.NewTrackError(opReopen, err, site)
	}

	// Standard streams are redirected in place and stay untracked.
	if f.std {
		if prev := f.swap(inner); prev != nil {
			_ = prev.Close()
		}
		return f, nil
	}

	if name == "" { // mode change: same identity, updated entry
		if prev := f.swap(inner); prev != nil {
			_ = prev.Close()
		}
		if err := t.reg.UpdateMode(f, mode, site); err != nil {
			t.log.WithOp(opReopen).WithFile(target).Warn(
				"mode change applied but entry update degraded", "error", err)
		}
		return f, nil
	}

	// Close-and-reopen: old entry transitions closed, new handle tracked.
	_ = f.Close()
	if err := t.reg.Close(f, registry.CloseReopen, site); err != nil {
		t.log.WithOp(opReopen).WithFile(target).Warn(
			"old handle was not tracked", "error", err)
	}

	nf := &File{inner: inner}
	if err := t.reg.Add(nf, registry.OpenReopen, name, mode, t.nameLenMax, site); err != nil {
		t.log.WithOp(opReopen).WithFile(name).Warn("reopen succeeded but tracking failed",
			"error", err)
	}
	return nf, nil
}

// Close closes a tracked handle and records the transition. A handle whose
// entry is already closed is refused before the primitive runs, preserving
// the original close provenance. Standard streams are refused outright.
func (t *Tracker) Close(f *File) error {
	return t.closeAt(f, callsite.Capture(1))
}

func (t *Tracker) closeAt(f *File, site callsite.Site) error {
	if f == nil {
		return t.reject(opClose, "stream is nil, no processing was done", site)
	}
	if f.std {
		return t.reject(opClose, "cannot close a standard stream", site)
	}

	if entry, ok := t.reg.Lookup(f); ok && entry.Closed {
		// Registry.Close produces the double-close report with both
		// provenance records; the primitive is never invoked.
		return t.reg.Close(f, registry.CloseClose, site)
	}

	primErr := f.Close()
	if primErr != nil {
		t.reg.RecordFailure(opClose, primErr)
		t.log.WithOp(opClose).WithFile(f.Name()).Error("failed to close file stream",
			"site", site.String())
	}

	// The attempt is recorded even when the primitive failed; the stream
	// is not safely usable afterwards either way.
	if err := t.reg.Close(f, registry.CloseClose, site); err != nil && primErr == nil {
		if !errors.Is(err, errors.ErrUntrackedHandle) {
			return err
		}
		// Untracked close: anomaly already logged, primitive result stands.
	}

	if primErr != nil {
		return errors.NewTrackError(opClose, primErr, site)
	}
	return nil
}

// Remove deletes a file by name, refusing while the name's most recently
// opened handle is still open. Structural inconsistencies in the registry
// are reported but fail open.
func (t *Tracker) Remove(name string) error {
	return t.removeAt(name, callsite.Capture(1))
}

func (t *Tracker) removeAt(name string, site callsite.Site) error {
	if name == "" {
		return t.reject(opRemove, "filename is empty, no processing was done", site)
	}

	if err := t.reg.CanRemove(name, t.nameLenMax, site); err != nil {
		return err
	}

	if err := os.Remove(name); err != nil {
		t.reg.RecordFailure(opRemove, err)
		t.log.WithOp(opRemove).WithFile(name).Error("failed to remove file",
			"site", site.String())
		return errors.NewTrackError(opRemove, err, site)
	}
	return nil
}

// Shutdown runs the registry's shutdown sweep.
func (t *Tracker) Shutdown() []registry.Leak {
	return t.reg.Shutdown()
}

// reject reports a fixed invalid-argument condition without invoking the
// real primitive.
func (t *Tracker) reject(op, msg string, site callsite.Site) error {
	t.reg.RecordFailure(op, errors.ErrInvalidArgument)
	t.log.WithOp(op).Error(msg, "site", site.String())
	return errors.NewTrackError(op, errors.ErrInvalidArgument, site)
}
