package link

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors, match with errors.Is
var (
	// ErrConnection means the port could not be opened: missing device,
	// permission denied, device busy, unsupported baud or connect timeout
	ErrConnection = errors.New("connection failed")

	// ErrTransient means a read or write failed on an open link
	ErrTransient = errors.New("transient i/o error")

	// ErrLinkLost means the link closed itself after too many consecutive
	// transmit failures
	ErrLinkLost = errors.New("link lost")
)

// ConnectionError describes a failed Open
type ConnectionError struct {
	Port string
	Baud int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s at %d baud: %v", e.Port, e.Baud, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConnection) true
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// IOError describes a failed read or write on an open link
type IOError struct {
	Op          string // "write" or "read"
	Port        string
	Consecutive int
	Lost        bool
	Err         error
}

func (e *IOError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	if e.Lost {
		msg += fmt.Sprintf(" (link lost after %d consecutive failures)", e.Consecutive)
	}
	return msg
}

func (e *IOError) Unwrap() error { return e.Err }

// Is makes errors.Is match ErrTransient, and ErrLinkLost once the link gave up
func (e *IOError) Is(target error) bool {
	return target == ErrTransient || (e.Lost && target == ErrLinkLost)
}
