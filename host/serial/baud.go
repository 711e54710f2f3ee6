package serial

import (
	"strconv"

	"github.com/pkg/errors"
)

// SupportedBauds lists the baud rates the panel offers, in display order
var SupportedBauds = []int{9600, 19200, 38400, 57600, 115200}

// ErrUnsupportedBaud is returned for a baud rate outside SupportedBauds
var ErrUnsupportedBaud = errors.New("unsupported baud rate")

// ValidateBaud checks baud against SupportedBauds
func ValidateBaud(baud int) error {
	for _, b := range SupportedBauds {
		if b == baud {
			return nil
		}
	}
	return errors.Wrapf(ErrUnsupportedBaud, "%d (acceptable values are %v)", baud, SupportedBauds)
}

// ParseBaud parses and validates a decimal baud rate
func ParseBaud(s string) (int, error) {
	baud, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrUnsupportedBaud, "%q is not a number", s)
	}
	return baud, ValidateBaud(baud)
}

// BaudIndex returns the position of baud in SupportedBauds, or -1
func BaudIndex(baud int) int {
	for i, b := range SupportedBauds {
		if b == baud {
			return i
		}
	}
	return -1
}
