package track

import (
	"io"
	"os"
	"sync"
)

// File wraps an *os.File behind a stable identity. The wrapper pointer is
// the handle the registry keys entries by, so a mode-change reopen can swap
// the underlying stream without the tracked identity changing, the
// behaviour stdio callers expect from freopen reusing the same FILE*.
//
// File.Close closes the raw stream without informing the registry; that is
// what the shutdown sweep uses to force-close leaks. Callers should close
// through Tracker.Close (or track.Close) so the lifecycle is recorded.
type File struct {
	mu    sync.Mutex
	inner *os.File
	std   bool // standard stream, never tracked
}

var (
	_ io.Reader = (*File)(nil)
	_ io.Writer = (*File)(nil)
	_ io.Closer = (*File)(nil)
)

// Stdin, Stdout, and Stderr wrap the process's standard streams. They are
// never inserted into the registry, and closing them through the façade is
// refused.
var (
	Stdin  = &File{inner: os.Stdin, std: true}
	Stdout = &File{inner: os.Stdout, std: true}
	Stderr = &File{inner: os.Stderr, std: true}
)

// Name returns the name of the underlying stream, as provided to the open.
func (f *File) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inner == nil {
		return ""
	}
	return f.inner.Name()
}

// Read reads from the underlying stream.
func (f *File) Read(p []byte) (int, error) {
	return f.file().Read(p)
}

// Write writes to the underlying stream.
func (f *File) Write(p []byte) (int, error) {
	return f.file().Write(p)
}

// Seek sets the offset of the underlying stream.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.file().Seek(offset, whence)
}

// Sync flushes the underlying stream to stable storage.
func (f *File) Sync() error {
	return f.file().Sync()
}

// Close closes the raw stream. It does not record the close in the
// registry; prefer Tracker.Close.
func (f *File) Close() error {
	f.mu.Lock()
	inner := f.inner
	f.mu.Unlock()
	if inner == nil {
		return os.ErrInvalid
	}
	return inner.Close()
}

// file returns the current underlying stream.
func (f *File) file() *os.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner
}

// swap replaces the underlying stream and returns the previous one.
func (f *File) swap(n *os.File) *os.File {
	f.mu.Lock()
	prev := f.inner
	f.inner = n
	f.mu.Unlock()
	return prev
}
