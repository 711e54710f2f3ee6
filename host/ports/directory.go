// Package ports keeps the operator's view of which serial devices exist.
//
// A Directory is a snapshot: it changes only when Refresh is called, never
// behind the caller's back.
package ports

import (
	"sync"

	"rcpanel/host/serial"
)

// Lister returns the serial device names currently present
type Lister func() ([]string, error)

// Directory holds the last port listing
type Directory struct {
	mu       sync.RWMutex
	list     Lister
	snapshot []string
}

// NewDirectory returns an empty directory backed by list. A nil list
// uses serial.ListPorts.
func NewDirectory(list Lister) *Directory {
	if list == nil {
		list = serial.ListPorts
	}
	return &Directory{list: list}
}

// Refresh replaces the snapshot with a fresh listing. On error the
// previous snapshot is kept.
func (d *Directory) Refresh() ([]string, error) {
	names, err := d.list()
	if err != nil {
		return d.Snapshot(), err
	}

	fresh := make([]string, len(names))
	copy(fresh, names)

	d.mu.Lock()
	d.snapshot = fresh
	d.mu.Unlock()

	return d.Snapshot(), nil
}

// Snapshot returns a copy of the last listing
func (d *Directory) Snapshot() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.snapshot))
	copy(out, d.snapshot)
	return out
}

// Index returns the position of name in the snapshot, or -1
func (d *Directory) Index(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i, n := range d.snapshot {
		if n == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is in the snapshot
func (d *Directory) Contains(name string) bool {
	return d.Index(name) >= 0
}
