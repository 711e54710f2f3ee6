package protocol

// History is a circular buffer of bytes received from the vehicle.
// The protocol has no uplink, so received bytes are only counted and
// discarded; the newest ones are kept around for diagnostics.
//
// Writes never block and never fail: when full, the oldest byte is
// overwritten. History is not safe for concurrent use.
type History struct {
	buf     []byte
	write   int
	used    int
	pending int
	dropped uint64
}

// NewHistory creates a History holding at most capacity bytes
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]byte, capacity)}
}

// Write appends data, overwriting the oldest bytes when full.
// It always returns len(data).
func (h *History) Write(data []byte) int {
	size := len(h.buf)
	for _, b := range data {
		h.buf[h.write] = b
		h.write = (h.write + 1) % size
		if h.used < size {
			h.used++
		}
		if h.pending < size {
			h.pending++
		} else {
			// Overwrote a byte nobody drained yet
			h.dropped++
		}
	}
	return len(data)
}

// Pending returns the number of bytes written since the last Drain,
// capped at the capacity
func (h *History) Pending() int {
	return h.pending
}

// Drain marks everything pending as consumed and returns how many bytes
// that was. The bytes stay visible through Recent.
func (h *History) Drain() int {
	n := h.pending
	h.pending = 0
	return n
}

// Dropped returns how many undrained bytes were overwritten
func (h *History) Dropped() uint64 {
	return h.dropped
}

// Len returns the number of bytes currently held
func (h *History) Len() int {
	return h.used
}

// Cap returns the capacity
func (h *History) Cap() int {
	return len(h.buf)
}

// Recent returns a copy of the newest n bytes, oldest first.
// When wrapped, both segments are copied into one contiguous slice.
func (h *History) Recent(n int) []byte {
	if n > h.used {
		n = h.used
	}
	if n <= 0 {
		return nil
	}
	size := len(h.buf)
	start := (h.write - n + size) % size
	out := make([]byte, n)
	if start+n <= size {
		copy(out, h.buf[start:start+n])
		return out
	}
	first := copy(out, h.buf[start:])
	copy(out[first:], h.buf[:n-first])
	return out
}

// Reset clears the buffer and its counters
func (h *History) Reset() {
	h.write = 0
	h.used = 0
	h.pending = 0
	h.dropped = 0
}
