package serial

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Opener opens a port from a config. Drivers and fakes share this shape.
type Opener func(cfg *Config) (Port, error)

// Drivers maps driver names to their opener. Tests may add entries.
var Drivers = map[string]Opener{
	DriverTarm:  openTarm,
	DriverBugst: openBugst,
}

// ErrUnknownDriver is returned when Config.Driver names no registered driver
var ErrUnknownDriver = errors.New("unknown serial driver")

// ErrConnectTimeout is returned when a port takes too long to open
var ErrConnectTimeout = errors.New("connect timeout")

// DriverNames returns the registered driver names, sorted
func DriverNames() []string {
	names := make([]string, 0, len(Drivers))
	for name := range Drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a serial port with the driver named in cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, errors.New("no serial device selected")
	}
	if err := ValidateBaud(cfg.Baud); err != nil {
		return nil, err
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	open, ok := Drivers[driver]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDriver, "%q (have %v)", driver, DriverNames())
	}
	return open(cfg)
}

// OpenWith runs open bounded by ctx and timeout. Some drivers block in the
// OS open call when a device is wedged; in that case the call is abandoned
// and a port that opens late is closed as soon as it shows up.
func OpenWith(ctx context.Context, open Opener, cfg *Config, timeout time.Duration) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		port Port
		err  error
	}
	done := make(chan result, 1)

	go func() {
		port, err := open(cfg)
		done <- result{port, err}
	}()

	select {
	case r := <-done:
		return r.port, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.port != nil {
				_ = r.port.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(ErrConnectTimeout, "opening %s after %v", cfg.Device, timeout)
		}
		return nil, ctx.Err()
	}
}
