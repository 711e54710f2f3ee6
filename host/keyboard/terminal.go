package keyboard

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Terminal reads keys from a terminal in raw mode
type Terminal struct {
	fd    int
	state *term.State

	keys chan []Key
	done chan struct{}
	once sync.Once
}

// Open puts f into raw mode and starts reading keys from it
func Open(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.Errorf("%s is not a terminal", f.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "entering raw mode")
	}
	t := NewReader(f)
	t.fd = fd
	t.state = state
	return t, nil
}

// NewReader reads keys from r without touching any terminal state
func NewReader(r io.Reader) *Terminal {
	t := &Terminal{
		fd:   -1,
		keys: make(chan []Key, 16),
		done: make(chan struct{}),
	}
	go t.readLoop(r)
	return t
}

// Keys delivers decoded key batches. It is closed when the input ends.
func (t *Terminal) Keys() <-chan []Key {
	return t.keys
}

// Restore stops delivering keys and puts the terminal back the way Open
// found it
func (t *Terminal) Restore() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		if t.state != nil {
			err = term.Restore(t.fd, t.state)
		}
	})
	return errors.Wrap(err, "restoring terminal")
}

func (t *Terminal) readLoop(r io.Reader) {
	defer close(t.keys)

	buffer := make([]byte, 64)
	for {
		n, err := r.Read(buffer)
		if n > 0 {
			keys := Decode(buffer[:n])
			if len(keys) > 0 {
				select {
				case t.keys <- keys:
				case <-t.done:
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}
