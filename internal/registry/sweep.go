package registry

import (
	"github.com/softcask/filetrack/internal/callsite"
	"github.com/softcask/filetrack/internal/errors"
	"github.com/softcask/filetrack/internal/event"
)

// Sweep conditions recorded on the side channel.
var (
	errNilHandleEntry = errors.New("entry with nil handle found during sweep")
	errLeaksFound     = errors.New("leaked handles found at shutdown")
)

// Shutdown sweeps the registry at the end of its lifetime. Every entry
// still open is reported as a leak and its handle force-closed exactly
// once; entries with a corrupt (nil) handle reference are reported as
// structural conditions. Both indices are then released and the registry
// reset to its uninitialized state, so a later operation re-initializes
// it. Relevant for hosts with non-standard exit/reinit cycles.
//
// Shutdown never fails: leaks are warned about loudly, but the shutdown
// path itself is not allowed to crash.
func (r *Registry) Shutdown() []Leak {
	site := callsite.Capture(1)

	r.mu.Lock()
	if r.handles == nil {
		r.mu.Unlock()
		return nil
	}

	entries := r.handles.Snapshot()

	var leaks []Leak
	var events []event.Event
	for _, entry := range entries {
		if entry.Handle == nil {
			r.recordFailure("shutdown", errNilHandleEntry)
			events = append(events, event.NewAnomalyEvent("shutdown",
				"entry with nil handle found during sweep", site))
			continue
		}
		if entry.Closed {
			continue
		}

		// Force-close the real stream. The handle's Close is the raw
		// primitive, not the tracked façade, so the sweep never re-enters
		// the lock it is holding.
		leak := Leak{
			Filename: entry.Filename,
			Mode:     entry.Mode,
			OpenKind: entry.OpenKind,
			OpenSite: entry.OpenSite,
			CloseErr: entry.Handle.Close(),
		}
		entry.Closed = true
		entry.CloseKind = CloseUnknown
		entry.CloseSite = site

		leaks = append(leaks, leak)
		events = append(events, event.NewHandleLeakedEvent(
			leak.Filename, leak.Mode, leak.OpenKind.String(), leak.OpenSite))
	}

	if len(leaks) > 0 {
		r.recordFailure("shutdown", errLeaksFound)
	}

	r.handles.Destroy()
	r.handles = nil
	if r.names != nil {
		r.names.Destroy()
		r.names = nil
	}
	r.mu.Unlock()

	for _, leak := range leaks {
		log := r.log.WithOp("shutdown").WithFile(leak.Filename)
		log.Warn("file not closed",
			"mode", leak.Mode,
			"open_kind", leak.OpenKind.String(),
			"open_site", leak.OpenSite.String())
		if leak.CloseErr != nil {
			log.Error("forced close failed", "error", leak.CloseErr)
		}
	}
	r.publish(events...)
	return leaks
}
