package serial

import (
	"io"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - go.bug.st/serial (default)
// - tarm/serial
// - Fake ports (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush discards data buffered by the driver in both directions
	Flush() error
}

// Driver names
const (
	DriverTarm  = "tarm"
	DriverBugst = "bugst"

	// DefaultDriver takes the device exclusively (TIOCEXCL), so a port
	// held by another program fails to open. tarm/serial does not.
	DefaultDriver = DriverBugst
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate, one of SupportedBauds
	Baud int

	// Read timeout; the background reader wakes at least this often.
	// Zero selects DefaultReadTimeout.
	ReadTimeout time.Duration

	// Driver selects the implementation, see Drivers. Empty selects DefaultDriver.
	Driver string
}

const (
	// DefaultReadTimeout is the read timeout used when none is configured.
	// tarm/serial rounds to tenths of a second so anything smaller is
	// pointless there.
	DefaultReadTimeout = 100 * time.Millisecond

	// DefaultConnectTimeout bounds how long Open may take
	DefaultConnectTimeout = 2 * time.Second

	// DefaultWriteTimeout bounds a single frame write. Neither driver has
	// a write timeout of its own.
	DefaultWriteTimeout = 500 * time.Millisecond
)

// DefaultConfig returns a default configuration for an Arduino style controller
func DefaultConfig(device string, baud int) *Config {
	return &Config{
		Device:      device,
		Baud:        baud,
		ReadTimeout: DefaultReadTimeout,
		Driver:      DefaultDriver,
	}
}

func (c *Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return DefaultReadTimeout
	}
	return c.ReadTimeout
}
