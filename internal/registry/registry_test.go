package registry

import (
	"sync"
	"testing"

	"github.com/softcask/filetrack/internal/callsite"
	"github.com/softcask/filetrack/internal/errors"
	"github.com/softcask/filetrack/internal/event"
)

// fakeHandle is a stand-in stream that counts close calls.
type fakeHandle struct {
	mu     sync.Mutex
	closes int
	err    error
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.err
}

func (f *fakeHandle) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func site(line int) callsite.Site {
	return callsite.At("caller.go", line)
}

func TestAddAndLookup(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	if err := reg.Add(h, OpenOpen, "a.txt", "w", 4096, site(10)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	entry, ok := reg.Lookup(h)
	if !ok {
		t.Fatal("Lookup() after Add should find the entry")
	}
	if entry.Filename != "a.txt" || entry.Mode != "w" {
		t.Errorf("entry = %q/%q, want a.txt/w", entry.Filename, entry.Mode)
	}
	if entry.OpenKind != OpenOpen {
		t.Errorf("OpenKind = %v, want %v", entry.OpenKind, OpenOpen)
	}
	if !entry.Open() {
		t.Error("entry should be open")
	}
	if entry.OpenSite.Line != 10 {
		t.Errorf("OpenSite.Line = %d, want 10", entry.OpenSite.Line)
	}
	if entry.NameTruncated {
		t.Error("NameTruncated should be false for a short name")
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name       string
		handle     Handle
		nameLenMax int
	}{
		{"nil handle", nil, 4096},
		{"zero name bound", &fakeHandle{}, 0},
		{"negative name bound", &fakeHandle{}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New()
			err := reg.Add(tt.handle, OpenOpen, "a.txt", "r", tt.nameLenMax, site(1))
			if !errors.Is(err, errors.ErrInvalidArgument) {
				t.Errorf("Add() error = %v, want ErrInvalidArgument", err)
			}
			if reg.Len() != 0 {
				t.Errorf("Len() = %d after rejected Add, want 0", reg.Len())
			}
			op, lastErr := reg.LastFailure()
			if op != "entry_add" || !errors.Is(lastErr, errors.ErrInvalidArgument) {
				t.Errorf("LastFailure() = %q/%v, want entry_add/ErrInvalidArgument", op, lastErr)
			}
		})
	}
}

func TestAddEmptyFilenameUsesUnknown(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	if err := reg.Add(h, OpenOpen, "", "r", 4096, site(1)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	entry, _ := reg.Lookup(h)
	if entry.Filename != UnknownName {
		t.Errorf("Filename = %q, want %q", entry.Filename, UnknownName)
	}
}

func TestAddTruncatesLongName(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	err := reg.Add(h, OpenOpen, "abcdefghij.txt", "r", 6, site(1))
	if err != nil {
		t.Fatalf("Add() error = %v, truncated names should still be tracked", err)
	}

	entry, ok := reg.Lookup(h)
	if !ok {
		t.Fatal("truncated entry should still be inserted")
	}
	if entry.Filename != "abcdef" {
		t.Errorf("Filename = %q, want %q", entry.Filename, "abcdef")
	}
	if !entry.NameTruncated {
		t.Error("NameTruncated should be set")
	}

	op, lastErr := reg.LastFailure()
	if op != "entry_add" || !errors.Is(lastErr, errors.ErrNameTruncated) {
		t.Errorf("LastFailure() = %q/%v, want entry_add/ErrNameTruncated", op, lastErr)
	}
}

func TestAddHandleReuseOverwrites(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	if err := reg.Add(h, OpenOpen, "old.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(h, OpenOpen, "new.txt", "w", 4096, site(2)); err != nil {
		t.Fatal(err)
	}

	entry, _ := reg.Lookup(h)
	if entry.Filename != "new.txt" {
		t.Errorf("Filename = %q, a reused handle identity should overwrite", entry.Filename)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestAddTempFileSkipsNameIndex(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	err := reg.Add(h, OpenTempFile, UnknownName, TempModeSentinel, UnknownNameLenMax, site(1))
	if err != nil {
		t.Fatal(err)
	}

	// A temp entry never enters the filename index, so removing a file
	// that happens to share the placeholder name is always permitted.
	if err := reg.CanRemove(UnknownName, 4096, site(2)); err != nil {
		t.Errorf("CanRemove(%q) = %v, temp entries must not block removal", UnknownName, err)
	}
	entry, _ := reg.Lookup(h)
	if entry.Mode != TempModeSentinel {
		t.Errorf("Mode = %q, want %q", entry.Mode, TempModeSentinel)
	}
}

func TestUpdateModeKeepsIdentity(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}
	if err := reg.UpdateMode(h, "a+", site(20)); err != nil {
		t.Fatalf("UpdateMode() error = %v", err)
	}

	entry, ok := reg.Lookup(h)
	if !ok {
		t.Fatal("entry should survive a mode change under the same identity")
	}
	if entry.Mode != "a+" {
		t.Errorf("Mode = %q, want a+", entry.Mode)
	}
	if entry.Filename != "a.txt" {
		t.Errorf("Filename = %q, must be unchanged by a mode change", entry.Filename)
	}
	if entry.ModeChangeSite.Line != 20 {
		t.Errorf("ModeChangeSite.Line = %d, want 20", entry.ModeChangeSite.Line)
	}
	if !entry.Open() {
		t.Error("entry must stay open across a mode change")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestUpdateModeUntrackedInsertsSynthetic(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	err := reg.UpdateMode(h, "w", site(5))
	if !errors.Is(err, errors.ErrUntrackedHandle) {
		t.Fatalf("UpdateMode() error = %v, want ErrUntrackedHandle", err)
	}

	entry, ok := reg.Lookup(h)
	if !ok {
		t.Fatal("untracked mode change should insert a synthetic entry")
	}
	if entry.OpenKind != OpenUnknown {
		t.Errorf("OpenKind = %v, want %v", entry.OpenKind, OpenUnknown)
	}
	if entry.Filename != UnknownName {
		t.Errorf("Filename = %q, want %q", entry.Filename, UnknownName)
	}
	if entry.Mode != "w" {
		t.Errorf("Mode = %q, want w", entry.Mode)
	}
}

func TestCloseTransitions(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(h, CloseClose, site(30)); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entry, ok := reg.Lookup(h)
	if !ok {
		t.Fatal("closed entries are retained")
	}
	if entry.Open() {
		t.Error("entry should be closed")
	}
	if entry.CloseKind != CloseClose {
		t.Errorf("CloseKind = %v, want %v", entry.CloseKind, CloseClose)
	}
	if entry.CloseSite.Line != 30 {
		t.Errorf("CloseSite.Line = %d, want 30", entry.CloseSite.Line)
	}
}

func TestDoubleClosePreservesProvenance(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(h, CloseClose, site(30)); err != nil {
		t.Fatal(err)
	}

	err := reg.Close(h, CloseClose, site(40))
	if !errors.Is(err, errors.ErrAlreadyClosed) {
		t.Fatalf("second Close() error = %v, want ErrAlreadyClosed", err)
	}

	var dce *errors.DoubleCloseError
	if !errors.As(err, &dce) {
		t.Fatalf("second Close() error = %T, want DoubleCloseError", err)
	}
	if dce.FirstClose.Line != 30 {
		t.Errorf("FirstClose.Line = %d, want 30", dce.FirstClose.Line)
	}
	if dce.Reclose.Line != 40 {
		t.Errorf("Reclose.Line = %d, want 40", dce.Reclose.Line)
	}

	// The entry still records the first close, not the rejected one.
	entry, _ := reg.Lookup(h)
	if entry.CloseSite.Line != 30 {
		t.Errorf("CloseSite.Line = %d after double close, want 30", entry.CloseSite.Line)
	}
}

func TestCloseUntrackedIsNoOp(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	err := reg.Close(h, CloseClose, site(5))
	if !errors.Is(err, errors.ErrUntrackedHandle) {
		t.Fatalf("Close() error = %v, want ErrUntrackedHandle", err)
	}

	// Unlike UpdateMode, an untracked close inserts nothing.
	if _, ok := reg.Lookup(h); ok {
		t.Error("untracked close must not insert an entry")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestCanRemove(t *testing.T) {
	t.Run("untracked name", func(t *testing.T) {
		reg := New()
		if err := reg.CanRemove("nowhere.txt", 4096, site(1)); err != nil {
			t.Errorf("CanRemove() = %v, want nil for an untracked name", err)
		}
	})

	t.Run("open handle refuses", func(t *testing.T) {
		reg := New()
		h := &fakeHandle{}
		if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
			t.Fatal(err)
		}
		err := reg.CanRemove("a.txt", 4096, site(2))
		if !errors.Is(err, errors.ErrStillOpen) {
			t.Errorf("CanRemove() = %v, want ErrStillOpen", err)
		}
	})

	t.Run("closed handle permits", func(t *testing.T) {
		reg := New()
		h := &fakeHandle{}
		if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
			t.Fatal(err)
		}
		if err := reg.Close(h, CloseClose, site(2)); err != nil {
			t.Fatal(err)
		}
		if err := reg.CanRemove("a.txt", 4096, site(3)); err != nil {
			t.Errorf("CanRemove() = %v, want nil for a closed handle", err)
		}
	})

	t.Run("reopen cycle", func(t *testing.T) {
		reg := New()
		h1 := &fakeHandle{}
		if err := reg.Add(h1, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
			t.Fatal(err)
		}
		if err := reg.Close(h1, CloseClose, site(2)); err != nil {
			t.Fatal(err)
		}

		// Reopening under the same name points the filename index at the
		// new handle, so removal is refused again.
		h2 := &fakeHandle{}
		if err := reg.Add(h2, OpenReopen, "a.txt", "w", 4096, site(3)); err != nil {
			t.Fatal(err)
		}
		err := reg.CanRemove("a.txt", 4096, site(4))
		if !errors.Is(err, errors.ErrStillOpen) {
			t.Errorf("CanRemove() after reopen = %v, want ErrStillOpen", err)
		}
	})
}

func TestCanRemoveFailsOpenOnDanglingIndex(t *testing.T) {
	reg := New()
	h := &fakeHandle{}
	if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}

	// Corrupt the structure: the filename index still points at h but the
	// handle index no longer has an entry for it.
	reg.mu.Lock()
	reg.handles.Delete(h)
	reg.mu.Unlock()

	if err := reg.CanRemove("a.txt", 4096, site(2)); err != nil {
		t.Errorf("CanRemove() = %v, want nil (fail open)", err)
	}
	op, lastErr := reg.LastFailure()
	if op != "remove_check" || !errors.Is(lastErr, errors.ErrStoreInconsistent) {
		t.Errorf("LastFailure() = %q/%v, want remove_check/ErrStoreInconsistent", op, lastErr)
	}
}

func TestOpenByName(t *testing.T) {
	reg := New()
	h := &fakeHandle{}

	if _, ok := reg.OpenByName("a.txt"); ok {
		t.Error("OpenByName() on an empty registry should report not open")
	}

	if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}
	entry, ok := reg.OpenByName("a.txt")
	if !ok {
		t.Fatal("OpenByName() should find the open entry")
	}
	if entry.Filename != "a.txt" {
		t.Errorf("Filename = %q, want a.txt", entry.Filename)
	}

	if err := reg.Close(h, CloseClose, site(2)); err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.OpenByName("a.txt"); ok {
		t.Error("OpenByName() should report not open after close")
	}
}

func TestLastFailureSurvivesSuccess(t *testing.T) {
	reg := New()

	if err := reg.Close(&fakeHandle{}, CloseClose, site(1)); err == nil {
		t.Fatal("Close() of an untracked handle should fail")
	}
	if err := reg.Add(&fakeHandle{}, OpenOpen, "a.txt", "r", 4096, site(2)); err != nil {
		t.Fatal(err)
	}

	// Success never clears the channel; callers poll it after a failure.
	op, lastErr := reg.LastFailure()
	if op != "entry_close" || !errors.Is(lastErr, errors.ErrUntrackedHandle) {
		t.Errorf("LastFailure() = %q/%v, want entry_close/ErrUntrackedHandle", op, lastErr)
	}
}

func TestEventsPublished(t *testing.T) {
	bus := event.NewBus()
	var types []string
	bus.SubscribeAll(func(e event.Event) { types = append(types, e.EventType()) })

	reg := New(WithBus(bus))
	h := &fakeHandle{}

	if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}
	if err := reg.UpdateMode(h, "a", site(2)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(h, CloseClose, site(3)); err != nil {
		t.Fatal(err)
	}
	reg.Close(h, CloseClose, site(4)) // double close

	want := []string{"handle.opened", "handle.mode_changed", "handle.closed", "handle.double_close"}
	if len(types) != len(want) {
		t.Fatalf("published %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	reg := New()
	h := &fakeHandle{}
	if err := reg.Add(h, OpenOpen, "a.txt", "r", 4096, site(1)); err != nil {
		t.Fatal(err)
	}

	snap := reg.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1", len(snap))
	}
	snap[0].Filename = "mutated"

	entry, _ := reg.Lookup(h)
	if entry.Filename != "a.txt" {
		t.Error("mutating a snapshot must not affect the registry")
	}
}
