// Package keyboard turns raw terminal input into panel controls.
package keyboard

import "fmt"

// Key is a decoded key press. Printable keys are their lowercase rune;
// special keys are negative.
type Key rune

// Special keys
const (
	KeyUp Key = -(iota + 1)
	KeyDown
	KeyRight
	KeyLeft
	KeyEscape
	KeyInterrupt
)

const (
	esc   = 0x1b
	ctrlC = 0x03
)

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyRight:
		return "right"
	case KeyLeft:
		return "left"
	case KeyEscape:
		return "esc"
	case KeyInterrupt:
		return "ctrl-c"
	}
	if k >= 0x20 && k < 0x7f {
		return string(rune(k))
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// Decode splits a chunk of raw-mode terminal input into keys. Arrow keys
// arrive as ESC [ A-D (or ESC O A-D); an ESC not followed by a sequence is
// Escape. Bytes that are neither printable nor known are dropped.
func Decode(data []byte) []Key {
	var keys []Key
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == ctrlC:
			keys = append(keys, KeyInterrupt)
		case b == esc:
			if i+1 >= len(data) || (data[i+1] != '[' && data[i+1] != 'O') {
				keys = append(keys, KeyEscape)
				continue
			}
			// Skip parameter bytes up to the final byte of the sequence
			j := i + 2
			for j < len(data) && (data[j] < 0x40 || data[j] > 0x7e) {
				j++
			}
			if j >= len(data) {
				i = len(data)
				continue
			}
			if k, ok := arrow(data[j]); ok {
				keys = append(keys, k)
			}
			i = j
		case b >= 'A' && b <= 'Z':
			keys = append(keys, Key(b+'a'-'A'))
		case b >= 0x20 && b < 0x7f:
			keys = append(keys, Key(b))
		}
	}
	return keys
}

func arrow(final byte) (Key, bool) {
	switch final {
	case 'A':
		return KeyUp, true
	case 'B':
		return KeyDown, true
	case 'C':
		return KeyRight, true
	case 'D':
		return KeyLeft, true
	}
	return 0, false
}
