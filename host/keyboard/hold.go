package keyboard

import "time"

// DefaultHoldWindow bridges the gap between the first key press and the
// start of auto-repeat. Desktops commonly wait 500ms before repeating; X11
// defaults to 660ms and needs a larger window.
const DefaultHoldWindow = 600 * time.Millisecond

// Holds approximates held keys. Terminals only report presses, so a key
// counts as down until the window passes without another press of it.
type Holds struct {
	window time.Duration
	last   map[Key]time.Time
}

// NewHolds returns a tracker with the given window, or DefaultHoldWindow
// when window is not positive
func NewHolds(window time.Duration) *Holds {
	if window <= 0 {
		window = DefaultHoldWindow
	}
	return &Holds{window: window, last: map[Key]time.Time{}}
}

// Press records a press of k at now
func (h *Holds) Press(k Key, now time.Time) {
	h.last[k] = now
}

// Down reports whether k is considered held at now
func (h *Holds) Down(k Key, now time.Time) bool {
	t, ok := h.last[k]
	if !ok {
		return false
	}
	if now.Sub(t) >= h.window {
		delete(h.last, k)
		return false
	}
	return true
}

// Reset releases every key
func (h *Holds) Reset() {
	h.last = map[Key]time.Time{}
}
