package serial

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// tarmPort is the part of *serial.Port that NativePort uses
type tarmPort interface {
	io.ReadWriteCloser
	Flush() error
}

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port tarmPort
	cfg  *Config
}

// openTarm opens a port through tarm/serial, 8N1
func openTarm(cfg *Config) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.readTimeout(),
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port. With a read timeout configured it
// returns (0, nil) when nothing arrived in time.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	// On POSIX tarm reads through an os.File, which reports a read that
	// timed out with no data as io.EOF
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input and unsent output
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
