package panel

import "rcpanel/protocol"

// Input is what the operator asked for during one tick
type Input struct {
	// Held movement controls
	Forward bool
	Reverse bool
	Left    bool
	Right   bool

	// SpeedDelta nudges the speed; SetSpeed, when non-nil, replaces it first
	SpeedDelta int
	SetSpeed   *int

	// CyclePort and CycleBaud step the selections by this many entries
	CyclePort int
	CycleBaud int

	// Buttons pressed this tick
	Connect bool
	Refresh bool
	Quit    bool
}

// ResolveDirection maps the forward/reverse controls to a slot 0 tag.
// Both or neither held means neutral.
func ResolveDirection(forward, reverse bool) byte {
	switch {
	case forward && !reverse:
		return protocol.Forward
	case reverse && !forward:
		return protocol.Reverse
	default:
		return protocol.Neutral
	}
}

// ResolveTurn maps the left/right controls to a slot 2 value. Both or
// neither held means straight. swap exchanges left and right for
// vehicles whose steering servo is mounted the other way round.
func ResolveTurn(left, right, swap bool) byte {
	l, r := protocol.Left, protocol.Right
	if swap {
		l, r = r, l
	}
	switch {
	case right && !left:
		return r
	case left && !right:
		return l
	default:
		return protocol.Straight
	}
}

// ClampSpeed bounds v to the slot 1 range
func ClampSpeed(v int) int {
	if v < protocol.SpeedMin {
		return protocol.SpeedMin
	}
	if v > protocol.SpeedMax {
		return protocol.SpeedMax
	}
	return v
}
