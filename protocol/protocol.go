// Package protocol implements the serial sync protocol spoken to the vehicle controller
package protocol

// Version represents the rcpanel protocol version
const Version = "0.1.0"

// Serial sync frame layout
//
//	0  Movement Direction  ('f'=forward/'n'=neutral/'r'=reverse)
//	1  Movement Speed      (0-255)
//	2  Turn Direction      (50=left/90=straight/130=right)
const (
	FrameSize = 3 // Bytes per transmission, no header, no checksum

	SlotDirection = 0
	SlotSpeed     = 1
	SlotTurn      = 2
)

// Direction tags (slot 0)
const (
	Forward byte = 'f'
	Neutral byte = 'n'
	Reverse byte = 'r'
)

// Turn values (slot 2)
const (
	Left     byte = 50
	Straight byte = 90
	Right    byte = 130
)

// Speed limits (slot 1)
const (
	SpeedMin = 0
	SpeedMax = 255
)
