// Package watch detects external modifications to tracked files: writes,
// removals, or renames performed on disk while the registry still has an
// open handle under that name. Such changes are a classic source of
// confusing file bugs: the handle keeps reading or writing a file that no
// longer matches what the rest of the system sees.
package watch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/softcask/filetrack/internal/errors"
	"github.com/softcask/filetrack/internal/event"
	"github.com/softcask/filetrack/internal/logging"
	"github.com/softcask/filetrack/internal/registry"
)

// ExternalChange describes one on-disk change to a file with an open
// tracked handle.
type ExternalChange struct {
	Path     string    // absolute path of the changed file
	Op       string    // "write", "remove", "rename", "chmod"
	Detected time.Time // when the change was observed
}

// Detector watches directories for changes to files the registry has open.
type Detector struct {
	watcher *fsnotify.Watcher
	reg     *registry.Registry
	bus     *event.Bus
	log     *logging.Logger

	ignore   []glob.Glob
	debounce time.Duration

	// Callback for external change notifications
	onChange func(ExternalChange)

	mu     sync.Mutex
	seen   map[string]time.Time // path -> last report, for debouncing
	stopCh chan struct{}
	once   sync.Once
}

// Option configures a Detector.
type Option func(*Detector)

// WithBus sets the event bus external changes are published to.
func WithBus(bus *event.Bus) Option {
	return func(d *Detector) { d.bus = bus }
}

// WithLogger sets the structured logger.
func WithLogger(log *logging.Logger) Option {
	return func(d *Detector) { d.log = log }
}

// WithDebounce suppresses duplicate reports for the same path within the
// given window.
func WithDebounce(window time.Duration) Option {
	return func(d *Detector) {
		if window > 0 {
			d.debounce = window
		}
	}
}

// WithIgnorePatterns sets glob patterns for paths the detector skips.
// Invalid patterns are rejected.
func WithIgnorePatterns(patterns []string) (Option, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Join(errors.New("invalid ignore pattern "+p), err)
		}
		globs = append(globs, g)
	}
	return func(d *Detector) { d.ignore = globs }, nil
}

// New creates a Detector cross-referencing reg.
func New(reg *registry.Registry, opts ...Option) (*Detector, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	d := &Detector{
		watcher:  watcher,
		reg:      reg,
		log:      logging.NopLogger(),
		debounce: 250 * time.Millisecond,
		seen:     make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SetChangeCallback sets the callback invoked for each detected change.
func (d *Detector) SetChangeCallback(cb func(ExternalChange)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = cb
}

// Add starts watching root and its subdirectories.
func (d *Detector) Add(root string) error {
	if err := d.watcher.Add(root); err != nil {
		return err
	}
	// fsnotify watches single directories; walk to cover the tree.
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if d.ignored(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			_ = d.watcher.Add(path)
		}
		return nil
	})
}

// Start begins processing filesystem events.
func (d *Detector) Start() {
	go d.loop()
}

// Stop stops the detector and releases the watcher.
func (d *Detector) Stop() {
	d.once.Do(func() {
		close(d.stopCh)
		_ = d.watcher.Close()
	})
}

func (d *Detector) loop() {
	for {
		select {
		case <-d.stopCh:
			return

		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(ev)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.WithOp("watch").Warn("watcher error", "error", err)
		}
	}
}

func (d *Detector) handleEvent(ev fsnotify.Event) {
	op := opName(ev.Op)
	if op == "" {
		return
	}
	path := ev.Name
	if d.ignored(path) {
		return
	}

	// Only changes to files the registry still has open are interesting.
	if _, open := d.reg.OpenByName(path); !open {
		return
	}

	d.mu.Lock()
	if last, ok := d.seen[path]; ok && time.Since(last) < d.debounce {
		d.mu.Unlock()
		return
	}
	d.seen[path] = time.Now()
	cb := d.onChange
	d.mu.Unlock()

	change := ExternalChange{Path: path, Op: op, Detected: time.Now()}
	d.log.WithOp("watch").WithFile(path).Warn(
		"file changed on disk while a tracked handle is open", "change", op)
	if d.bus != nil {
		d.bus.Publish(event.NewExternalChangeEvent(path, op))
	}
	if cb != nil {
		cb(change)
	}
}

func (d *Detector) ignored(path string) bool {
	for _, g := range d.ignore {
		if g.Match(path) || g.Match(filepath.Base(path)) {
			return true
		}
	}
	return false
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return ""
	}
}
