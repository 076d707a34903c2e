package track

import (
	"os"

	"github.com/softcask/filetrack/internal/errors"
)

// parseMode converts a C-stdio access mode string into os.OpenFile flags.
// Accepted forms are "r", "w", "a", each optionally followed by "+" and/or
// "b" in either order. The binary flag is accepted and ignored; it has no
// meaning on the platforms this runs on.
func parseMode(mode string) (int, error) {
	if mode == "" {
		return 0, errors.ErrInvalidArgument
	}

	var flags int
	switch mode[0] {
	case 'r':
		flags = os.O_RDONLY
	case 'w':
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case 'a':
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return 0, errors.ErrInvalidArgument
	}

	plus := false
	for _, c := range mode[1:] {
		switch c {
		case '+':
			if plus {
				return 0, errors.ErrInvalidArgument
			}
			plus = true
		case 'b':
			// ignored
		default:
			return 0, errors.ErrInvalidArgument
		}
	}

	if plus {
		flags &^= os.O_RDONLY | os.O_WRONLY
		flags |= os.O_RDWR
	}
	return flags, nil
}
