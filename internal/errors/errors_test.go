package errors

import (
	"strings"
	"testing"

	"github.com/softcask/filetrack/internal/callsite"
)

func TestTrackError(t *testing.T) {
	site := callsite.At("caller.go", 10)
	err := NewTrackError("filetrack_fopen", ErrInvalidArgument, site)

	if !Is(err, ErrInvalidArgument) {
		t.Error("TrackError should unwrap to its sentinel")
	}
	if err.Code() != CodeInvalidArgument {
		t.Errorf("Code() = %v, want CodeInvalidArgument", err.Code())
	}
	for _, want := range []string{"filetrack_fopen", "caller.go:10", "invalid argument"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error() = %q, want it to contain %q", err.Error(), want)
		}
	}
}

func TestTrackErrorZeroSite(t *testing.T) {
	err := NewTrackError("entry_close", ErrUntrackedHandle, callsite.Site{})
	if strings.Contains(err.Error(), "at ") {
		t.Errorf("Error() = %q, should omit the site clause for a zero site", err.Error())
	}
}

func TestDoubleCloseError(t *testing.T) {
	first := callsite.At("a.go", 1)
	again := callsite.At("b.go", 2)
	err := NewDoubleCloseError(first, again)

	if !Is(err, ErrAlreadyClosed) {
		t.Error("DoubleCloseError should match ErrAlreadyClosed")
	}

	var dce *DoubleCloseError
	if !As(err, &dce) {
		t.Fatal("As() failed to extract DoubleCloseError")
	}
	if dce.FirstClose != first || dce.Reclose != again {
		t.Errorf("provenance = %v/%v, want %v/%v", dce.FirstClose, dce.Reclose, first, again)
	}
	for _, want := range []string{"a.go:1", "b.go:2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error() = %q, want it to contain %q", err.Error(), want)
		}
	}
}

func TestDoubleCloseErrorThroughTrackError(t *testing.T) {
	dce := NewDoubleCloseError(callsite.At("a.go", 1), callsite.At("b.go", 2))
	err := NewTrackError("entry_close", dce, callsite.At("b.go", 2))

	if !Is(err, ErrAlreadyClosed) {
		t.Error("wrapped DoubleCloseError should still match ErrAlreadyClosed")
	}
	var out *DoubleCloseError
	if !As(err, &out) {
		t.Error("As() should find DoubleCloseError through TrackError")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: CodeNone},
		{name: "invalid argument", err: ErrInvalidArgument, want: CodeInvalidArgument},
		{name: "already closed", err: ErrAlreadyClosed, want: CodeInvalidArgument},
		{name: "still open", err: ErrStillOpen, want: CodeInvalidArgument},
		{name: "truncated", err: ErrNameTruncated, want: CodeInvalidArgument},
		{name: "untracked", err: ErrUntrackedHandle, want: CodeNotPermitted},
		{name: "inconsistent", err: ErrStoreInconsistent, want: CodeProtocol},
		{name: "arbitrary", err: New("disk on fire"), want: CodePrimitive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeErrno(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNone, 0},
		{CodeInvalidArgument, 22},
		{CodeNotPermitted, 1},
		{CodeProtocol, 71},
		{CodePrimitive, 5},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := tt.code.Errno(); got != tt.want {
				t.Errorf("Errno() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassification(t *testing.T) {
	if !IsFailOpen(ErrStoreInconsistent) {
		t.Error("structural inconsistency should be fail-open")
	}
	if !IsFailOpen(ErrNameTruncated) {
		t.Error("truncation should be fail-open")
	}
	if IsFailOpen(ErrStillOpen) {
		t.Error("still-open refusal is not fail-open")
	}

	if !IsAnomaly(ErrUntrackedHandle) {
		t.Error("untracked handle should be an anomaly")
	}
	if IsAnomaly(ErrInvalidArgument) {
		t.Error("invalid argument is not an anomaly")
	}
}
