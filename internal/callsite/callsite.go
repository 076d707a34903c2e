// Package callsite captures caller provenance for tracked file operations.
// The registry stores one Site per lifecycle transition (open, mode change,
// close) so leak and misuse reports can point at the code responsible.
package callsite

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Site identifies a single call site in the program's source.
// The zero value means "unknown".
type Site struct {
	File     string // source file, trimmed to its base name
	Line     int
	Function string // fully qualified function name, may be empty
}

// Capture returns the Site of the caller. skip follows the semantics of
// runtime.Caller: 0 is the caller of Capture itself, 1 its caller, and so on.
// If the runtime cannot resolve the frame, the zero Site is returned.
func Capture(skip int) Site {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Site{}
	}
	s := Site{File: filepath.Base(file), Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		s.Function = fn.Name()
	}
	return s
}

// At builds a Site explicitly, for callers that thread their own provenance
// instead of relying on runtime capture.
func At(file string, line int) Site {
	return Site{File: file, Line: line}
}

// IsZero reports whether the site carries no location.
func (s Site) IsZero() bool {
	return s.File == "" && s.Line == 0
}

// String renders the site as "file:line".
func (s Site) String() string {
	if s.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}
