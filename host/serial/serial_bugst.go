package serial

import (
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/multierr"
)

// BugstPort wraps the go.bug.st/serial implementation
type BugstPort struct {
	port serial.Port
	cfg  *Config
}

// openBugst opens a port through go.bug.st/serial, 8N1
func openBugst(cfg *Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}
	if err := port.SetReadTimeout(cfg.readTimeout()); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to set read timeout"), port.Close())
	}

	return &BugstPort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port, returning (0, nil) on timeout
func (p *BugstPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port
func (p *BugstPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *BugstPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input and unsent output
func (p *BugstPort) Flush() error {
	return multierr.Combine(p.port.ResetInputBuffer(), p.port.ResetOutputBuffer())
}
