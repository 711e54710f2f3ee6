// Package serialtest provides an in-memory serial port for tests.
package serialtest

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"rcpanel/host/serial"
)

// ErrClosed is returned by a FakePort after Close
var ErrClosed = errors.New("fake port closed")

// FakePort is a serial.Port that records writes and serves queued reads.
// Each Write call is recorded separately so tests can check framing.
type FakePort struct {
	mu       sync.Mutex
	writes   [][]byte
	rx       []byte
	rxSignal chan struct{}
	closed   chan struct{}
	closeN   int
	flushN   int
	stall    chan struct{}

	// WriteErr, when set, fails every write
	WriteErr error
	// ReadErr, when set, fails every read
	ReadErr error
	// ShortWrite makes writes report one byte fewer than given
	ShortWrite bool
}

// NewFakePort returns an open fake port
func NewFakePort() *FakePort {
	return &FakePort{
		rxSignal: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// Feed queues bytes for the reader, as if the device sent them
func (p *FakePort) Feed(data []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, data...)
	p.mu.Unlock()
	select {
	case p.rxSignal <- struct{}{}:
	default:
	}
}

// Read returns queued bytes, or (0, nil) after a short wait like a port
// with a read timeout. After Close it returns io.EOF.
func (p *FakePort) Read(b []byte) (int, error) {
	for {
		p.mu.Lock()
		if p.isClosed() {
			p.mu.Unlock()
			return 0, io.EOF
		}
		if p.ReadErr != nil {
			err := p.ReadErr
			p.mu.Unlock()
			time.Sleep(time.Millisecond)
			return 0, err
		}
		if len(p.rx) > 0 {
			n := copy(b, p.rx)
			p.rx = p.rx[n:]
			p.mu.Unlock()
			return n, nil
		}
		p.mu.Unlock()

		select {
		case <-p.rxSignal:
		case <-p.closed:
		case <-time.After(5 * time.Millisecond):
			return 0, nil
		}
	}
}

// Write records b. While stalled it blocks until released or closed.
func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	stall := p.stall
	p.mu.Unlock()
	if stall != nil {
		select {
		case <-stall:
		case <-p.closed:
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed() {
		return 0, ErrClosed
	}
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	c := make([]byte, len(b))
	copy(c, b)
	p.writes = append(p.writes, c)
	if p.ShortWrite && len(b) > 0 {
		return len(b) - 1, nil
	}
	return len(b), nil
}

// Close marks the port closed; further calls are counted but harmless
func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeN++
	if !p.isClosed() {
		close(p.closed)
	}
	return nil
}

// Flush counts flushes and drops queued input
func (p *FakePort) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushN++
	p.rx = nil
	return nil
}

func (p *FakePort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// SetWriteErr changes WriteErr under the port lock
func (p *FakePort) SetWriteErr(err error) {
	p.mu.Lock()
	p.WriteErr = err
	p.mu.Unlock()
}

// Stall makes writes block, like a wedged USB adapter, until Release or
// Close
func (p *FakePort) Stall() {
	p.mu.Lock()
	if p.stall == nil {
		p.stall = make(chan struct{})
	}
	p.mu.Unlock()
}

// Release unblocks stalled writes
func (p *FakePort) Release() {
	p.mu.Lock()
	if p.stall != nil {
		close(p.stall)
		p.stall = nil
	}
	p.mu.Unlock()
}

// SetReadErr changes ReadErr under the port lock
func (p *FakePort) SetReadErr(err error) {
	p.mu.Lock()
	p.ReadErr = err
	p.mu.Unlock()
}

// Writes returns a copy of every recorded write
func (p *FakePort) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// LastWrite returns the most recent write, or nil
func (p *FakePort) LastWrite() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return nil
	}
	return append([]byte(nil), p.writes[len(p.writes)-1]...)
}

// Pending returns how many fed bytes the reader has not consumed yet
func (p *FakePort) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx)
}

// Closed reports whether Close was called
func (p *FakePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isClosed()
}

// CloseCount returns how many times Close was called
func (p *FakePort) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeN
}

// FlushCount returns how many times Flush was called
func (p *FakePort) FlushCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushN
}

// Devices is a fake set of attached devices. Its Open method is a
// serial.Opener that hands out a fresh FakePort per open of a known
// device and fails for unknown ones.
type Devices struct {
	mu     sync.Mutex
	ports  map[string]*FakePort
	opened []serial.Config
	// Delay makes Open block this long before answering
	Delay time.Duration
}

// NewDevices returns a device set containing names
func NewDevices(names ...string) *Devices {
	d := &Devices{ports: map[string]*FakePort{}}
	for _, n := range names {
		d.ports[n] = nil
	}
	return d
}

// Add attaches a device
func (d *Devices) Add(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ports[name]; !ok {
		d.ports[name] = nil
	}
}

// Remove detaches a device
func (d *Devices) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ports, name)
}

// List is a port lister over the attached devices, sorted by name
func (d *Devices) List() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.ports))
	for n := range d.ports {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Open implements serial.Opener
func (d *Devices) Open(cfg *serial.Config) (serial.Port, error) {
	if d.Delay > 0 {
		time.Sleep(d.Delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, *cfg)
	if _, ok := d.ports[cfg.Device]; !ok {
		return nil, errors.Errorf("open %s: no such file or directory", cfg.Device)
	}
	p := NewFakePort()
	d.ports[cfg.Device] = p
	return p, nil
}

// Port returns the fake port last opened for name, or nil
func (d *Devices) Port(name string) *FakePort {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ports[name]
}

// Opened returns the configs of every open attempt
func (d *Devices) Opened() []serial.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]serial.Config(nil), d.opened...)
}
