package protocol

import (
	"fmt"
	"strings"
)

// Frame is the 3-byte command frame pushed to the vehicle every tick.
// The zero value is not a valid frame, use NewFrame.
type Frame [FrameSize]byte

// NewFrame returns a neutral, stopped, straight frame
func NewFrame() Frame {
	return Frame{Neutral, SpeedMin, Straight}
}

// Set overwrites one slot in place. Slots outside 0-2 are a programming
// error and panic. Values are not validated.
func (f *Frame) Set(slot int, value byte) {
	if slot < 0 || slot >= FrameSize {
		panic(fmt.Sprintf("protocol: frame slot %d out of range [0,%d)", slot, FrameSize))
	}
	f[slot] = value
}

// Get returns the value of a slot, panicking on an invalid slot like Set
func (f Frame) Get(slot int) byte {
	if slot < 0 || slot >= FrameSize {
		panic(fmt.Sprintf("protocol: frame slot %d out of range [0,%d)", slot, FrameSize))
	}
	return f[slot]
}

// Bytes returns a copy of the frame in wire order
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameSize)
	copy(b, f[:])
	return b
}

func (f Frame) String() string {
	return fmt.Sprintf("%s speed=%d turn=%s", DirectionName(f[SlotDirection]), f[SlotSpeed], TurnName(f[SlotTurn]))
}

// DirectionName returns a printable name for a slot 0 tag
func DirectionName(tag byte) string {
	switch tag {
	case Forward:
		return "forward"
	case Neutral:
		return "neutral"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("0x%02x", tag)
	}
}

// TurnName returns a printable name for a slot 2 value
func TurnName(turn byte) string {
	switch turn {
	case Left:
		return "left"
	case Straight:
		return "straight"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("%d", turn)
	}
}

// ParseDirection accepts a tag character or a direction name
func ParseDirection(s string) (byte, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "forward":
		return Forward, nil
	case "n", "neutral":
		return Neutral, nil
	case "r", "reverse":
		return Reverse, nil
	}
	return 0, fmt.Errorf("unknown direction %q (want f, n or r)", s)
}

// ParseTurn accepts a turn name or one of the raw values 50, 90, 130
func ParseTurn(s string) (byte, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l", "50":
		return Left, nil
	case "straight", "s", "90":
		return Straight, nil
	case "right", "r", "130":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown turn %q (want left, straight or right)", s)
}
