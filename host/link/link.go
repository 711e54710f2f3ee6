// Package link owns the serial connection to the vehicle controller and the
// command frame pushed over it.
//
// The protocol is level-triggered: the whole frame goes out on every
// Transmit, changed or not, so the controller resynchronizes after a lost
// byte or a reconnect. There is no acknowledgement and no uplink.
package link

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rcpanel/host/serial"
	"rcpanel/protocol"
)

// State is the connection state of a Link
type State int

// Link states
const (
	Closed State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Defaults for Config
const (
	DefaultMaxFailures = 10
	DefaultHistorySize = 256

	readerStopTimeout = time.Second
	readBufferSize    = 256
)

// Config controls how a Link opens and supervises its port
type Config struct {
	// Driver names the serial driver, see serial.Drivers
	Driver string
	// ReadTimeout bounds each background read
	ReadTimeout time.Duration
	// ConnectTimeout bounds Open
	ConnectTimeout time.Duration
	// WriteTimeout bounds each frame write
	WriteTimeout time.Duration
	// MaxFailures consecutive transmit failures force the link closed.
	// Zero disables the limit.
	MaxFailures int
	// HistorySize is how many received bytes are kept for RecentRX
	HistorySize int
	// Opener overrides the driver lookup, for tests
	Opener serial.Opener
}

// DefaultConfig returns the configuration used by the panel
func DefaultConfig() Config {
	return Config{
		Driver:         serial.DefaultDriver,
		ReadTimeout:    serial.DefaultReadTimeout,
		ConnectTimeout: serial.DefaultConnectTimeout,
		WriteTimeout:   serial.DefaultWriteTimeout,
		MaxFailures:    DefaultMaxFailures,
		HistorySize:    DefaultHistorySize,
	}
}

// Stats counts link traffic since the last successful Open
type Stats struct {
	Frames      uint64 // Frames fully written
	TXBytes     uint64
	TXErrors    uint64
	RXBytes     uint64 // Bytes received and discarded
	RXErrors    uint64
	RXDropped   uint64 // Received bytes overwritten before a Drain
	Consecutive int    // Transmit failures in a row
}

// Link represents the serial link to the vehicle controller
type Link struct {
	cfg    Config
	open   serial.Opener
	logger *zap.SugaredLogger

	// Guards everything below; the reader goroutine shares rx, rxErr and stats
	mu sync.Mutex

	port     serial.Port
	portName string
	baud     int

	frame protocol.Frame
	rx    *protocol.History
	rxErr error
	stats Stats

	// writing is set while a frame write has not returned yet
	writing bool

	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a closed Link holding a neutral frame
func New(cfg Config, logger *zap.SugaredLogger) *Link {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = serial.DefaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	open := cfg.Opener
	if open == nil {
		open = serial.Open
	}
	return &Link{
		cfg:    cfg,
		open:   open,
		logger: logger,
		frame:  protocol.NewFrame(),
		rx:     protocol.NewHistory(cfg.HistorySize),
	}
}

// Open binds the link to portName at baud. Any current connection is
// closed first. The frame is kept as is.
func (l *Link) Open(ctx context.Context, portName string, baud int) error {
	if err := l.Close(); err != nil {
		l.logger.Debugw("error closing previous port", "error", err)
	}

	fail := func(err error) error {
		l.logger.Warnw("serial connect failed", "port", portName, "baud", baud, "error", err)
		return &ConnectionError{Port: portName, Baud: baud, Err: err}
	}

	if portName == "" {
		return fail(errors.New("no port selected"))
	}
	if err := serial.ValidateBaud(baud); err != nil {
		return fail(err)
	}

	cfg := &serial.Config{
		Device:      portName,
		Baud:        baud,
		ReadTimeout: l.cfg.ReadTimeout,
		Driver:      l.cfg.Driver,
	}
	port, err := serial.OpenWith(ctx, l.open, cfg, l.cfg.ConnectTimeout)
	if err != nil {
		return fail(err)
	}

	// Stale bytes from before the open are of no interest
	if err := port.Flush(); err != nil {
		l.logger.Debugw("flush after open failed", "port", portName, "error", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	l.mu.Lock()
	l.port = port
	l.portName = portName
	l.baud = baud
	l.stats = Stats{}
	l.rx.Reset()
	l.rxErr = nil
	l.writing = false
	l.stopChan = stop
	l.doneChan = done
	l.mu.Unlock()

	go l.readLoop(port, stop, done)

	l.logger.Infow("serial link open", "port", portName, "baud", baud, "driver", cfg.Driver)
	return nil
}

// Close releases the port. Closing a closed link does nothing.
func (l *Link) Close() error {
	l.mu.Lock()
	port, name := l.port, l.portName
	stop, done := l.stopChan, l.doneChan
	l.port = nil
	l.portName = ""
	l.baud = 0
	l.stopChan = nil
	l.doneChan = nil
	l.mu.Unlock()

	if port == nil {
		return nil
	}

	close(stop)
	err := port.Close()

	select {
	case <-done:
	case <-time.After(readerStopTimeout):
		l.logger.Warnw("serial reader did not stop", "port", name)
	}

	l.logger.Infow("serial link closed", "port", name)
	if err != nil {
		return errors.Wrapf(err, "closing %s", name)
	}
	return nil
}

// Set overwrites one frame slot. Slots outside 0-2 panic.
func (l *Link) Set(slot int, value byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame.Set(slot, value)
}

// Frame returns a copy of the current frame
func (l *Link) Frame() protocol.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame
}

// Transmit writes the whole frame in one write. On a closed link it does
// nothing and returns nil. The write runs without the link lock and is
// bounded by WriteTimeout; while a timed out write is still stuck, further
// calls fail at once instead of queueing behind it. Failures return an
// error matching ErrTransient; after MaxFailures in a row the link closes
// itself and the error also matches ErrLinkLost.
func (l *Link) Transmit() error {
	l.mu.Lock()
	port := l.port
	if port == nil {
		l.mu.Unlock()
		return nil
	}
	if l.writing {
		l.mu.Unlock()
		return l.writeDone(port, 0, 0, errors.New("previous write still blocked"))
	}
	data := l.frame.Bytes()
	l.writing = true
	l.mu.Unlock()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := port.Write(data)
		l.mu.Lock()
		if l.port == port {
			l.writing = false
		}
		l.mu.Unlock()
		done <- result{n, err}
	}()

	timer := time.NewTimer(l.cfg.WriteTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return l.writeDone(port, len(data), r.n, r.err)
	case <-timer.C:
		return l.writeDone(port, len(data), 0, errors.Errorf("write timed out after %v", l.cfg.WriteTimeout))
	}
}

// writeDone accounts for one write of want bytes to port
func (l *Link) writeDone(port serial.Port, want, n int, err error) error {
	if err == nil && n != want {
		err = errors.Errorf("incomplete write: %d/%d bytes", n, want)
	}

	l.mu.Lock()
	if l.port != port {
		// Closed or reopened while writing
		l.mu.Unlock()
		return nil
	}
	if err == nil {
		if l.stats.Consecutive > 0 {
			l.logger.Infow("serial transmit recovered", "port", l.portName, "failures", l.stats.Consecutive)
		}
		l.stats.Frames++
		l.stats.TXBytes += uint64(n)
		l.stats.Consecutive = 0
		l.mu.Unlock()
		return nil
	}

	l.stats.TXErrors++
	l.stats.Consecutive++
	ioErr := &IOError{Op: "write", Port: l.portName, Consecutive: l.stats.Consecutive, Err: err}
	if l.stats.Consecutive == 1 {
		l.logger.Warnw("serial transmit failed", "port", l.portName, "error", err)
	}
	ioErr.Lost = l.cfg.MaxFailures > 0 && l.stats.Consecutive >= l.cfg.MaxFailures
	l.mu.Unlock()

	if ioErr.Lost {
		l.logger.Errorw("serial link lost", "port", ioErr.Port, "failures", ioErr.Consecutive, "error", err)
		if cerr := l.Close(); cerr != nil {
			l.logger.Debugw("error closing lost link", "error", cerr)
		}
	}
	return ioErr
}

// Drain discards bytes received since the last call and returns how many
// there were. It never blocks on the port: bytes are collected by the
// background reader. A read failure seen since the last call is returned
// once as an error matching ErrTransient.
func (l *Link) Drain() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.rx.Drain()
	l.stats.RXDropped = l.rx.Dropped()
	err := l.rxErr
	l.rxErr = nil
	return n, err
}

// RecentRX returns up to n of the most recently received bytes
func (l *Link) RecentRX(n int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rx.Recent(n)
}

// IsConnected reports whether the link holds an open port
func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// State returns Connected or Closed
func (l *Link) State() State {
	if l.IsConnected() {
		return Connected
	}
	return Closed
}

// Port returns the bound port name and baud, or "" and 0 when closed
func (l *Link) Port() (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.portName, l.baud
}

// Stats returns a copy of the traffic counters
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// readLoop continuously reads from the port into the receive history
func (l *Link) readLoop(port serial.Port, stop, done chan struct{}) {
	defer close(done)

	buffer := make([]byte, readBufferSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := port.Read(buffer)
		if n > 0 {
			l.mu.Lock()
			l.rx.Write(buffer[:n])
			l.stats.RXBytes += uint64(n)
			l.mu.Unlock()
		}
		if err == nil {
			continue
		}

		select {
		case <-stop:
			return
		default:
		}

		l.mu.Lock()
		l.stats.RXErrors++
		l.rxErr = &IOError{Op: "read", Port: l.portName, Err: err}
		l.mu.Unlock()

		if err == io.EOF {
			// Device went away; transmit failures will take it from here
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
