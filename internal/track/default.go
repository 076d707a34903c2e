package track

import (
	"sync"

	"github.com/softcask/filetrack/internal/callsite"
	"github.com/softcask/filetrack/internal/registry"
)

// The package-level functions delegate to a process-wide default Tracker,
// so callers can track handles without threading a Tracker through.
var (
	defaultMu      sync.RWMutex
	defaultTracker = NewTracker(registry.New())
)

// Default returns the process-wide default tracker.
func Default() *Tracker {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultTracker
}

// SetDefault replaces the process-wide default tracker. Intended for
// program startup, before any tracked operation runs.
func SetDefault(t *Tracker) {
	defaultMu.Lock()
	defaultTracker = t
	defaultMu.Unlock()
}

// Open opens name with mode using the default tracker.
func Open(name, mode string) (*File, error) {
	return Default().openAt(name, mode, callsite.Capture(1))
}

// TempFile creates a tracked anonymous temporary file using the default
// tracker.
func TempFile() (*File, error) {
	return Default().tempFileAt(callsite.Capture(1))
}

// Reopen reopens f using the default tracker. See Tracker.Reopen.
func Reopen(name, mode string, f *File) (*File, error) {
	return Default().reopenAt(name, mode, f, callsite.Capture(1))
}

// Close closes f using the default tracker.
func Close(f *File) error {
	return Default().closeAt(f, callsite.Capture(1))
}

// Remove deletes name using the default tracker.
func Remove(name string) error {
	return Default().removeAt(name, callsite.Capture(1))
}

// Shutdown sweeps the default tracker's registry.
func Shutdown() []registry.Leak {
	return Default().Shutdown()
}
