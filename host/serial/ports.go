package serial

import (
	"path/filepath"
	"runtime"
	"sort"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Enumerate and Glob are variables so tests can replace the OS lookups
var (
	Enumerate = serial.GetPortsList
	Glob      = filepath.Glob
)

// devicePatterns lists likely USB CDC/ACM and USB-serial devices per OS.
// The enumerator already covers these on most systems; the globs catch
// adapters it misses (e.g. when sysfs is unavailable).
func devicePatterns(goos string) []string {
	switch goos {
	case "linux":
		return []string{"/dev/ttyACM*", "/dev/ttyUSB*"}
	case "darwin":
		return []string{"/dev/tty.usbmodem*", "/dev/tty.usbserial*", "/dev/cu.usbmodem*", "/dev/cu.usbserial*"}
	case "freebsd", "openbsd", "netbsd":
		return []string{"/dev/cuaU*", "/dev/ttyU*"}
	default:
		return nil
	}
}

// ListPorts returns the serial device names present on this host, sorted
// and without duplicates. It is a snapshot; nothing is cached.
func ListPorts() ([]string, error) {
	seen := map[string]bool{}

	listed, enumErr := Enumerate()
	for _, p := range listed {
		seen[p] = true
	}

	for _, pattern := range devicePatterns(runtime.GOOS) {
		matches, _ := Glob(pattern)
		for _, p := range matches {
			seen[p] = true
		}
	}

	ports := make([]string, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Strings(ports)

	if enumErr != nil && len(ports) == 0 {
		return nil, errors.Wrap(enumErr, "failed to enumerate serial ports")
	}
	return ports, nil
}
