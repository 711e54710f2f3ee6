package keyboard

import (
	"time"

	"rcpanel/host/panel"
	"rcpanel/protocol"
)

// DefaultSpeedStep is how much + and - move the speed
const DefaultSpeedStep = 5

// Mapper turns key batches into panel input.
//
//	w / up      forward         s / down   reverse
//	d / right   right           a / left   left
//	+ / -       speed step      0-9        speed preset
//	p           next port       b          next baud
//	c           connect         r          refresh
//	q / esc / ctrl-c            quit
type Mapper struct {
	holds *Holds
	step  int
}

// NewMapper returns a Mapper using holdWindow for movement keys and step
// for speed nudges
func NewMapper(holdWindow time.Duration, step int) *Mapper {
	if step <= 0 {
		step = DefaultSpeedStep
	}
	return &Mapper{holds: NewHolds(holdWindow), step: step}
}

// Input folds the keys pressed since the last tick into an Input
func (m *Mapper) Input(keys []Key, now time.Time) panel.Input {
	var in panel.Input

	for _, k := range keys {
		switch k {
		case 'w', KeyUp:
			m.holds.Press('w', now)
		case 's', KeyDown:
			m.holds.Press('s', now)
		case 'd', KeyRight:
			m.holds.Press('d', now)
		case 'a', KeyLeft:
			m.holds.Press('a', now)
		case '+', '=':
			in.SpeedDelta += m.step
		case '-', '_':
			in.SpeedDelta -= m.step
		case 'p':
			in.CyclePort++
		case 'b':
			in.CycleBaud++
		case 'c':
			in.Connect = true
		case 'r':
			in.Refresh = true
		case 'q', KeyEscape, KeyInterrupt:
			in.Quit = true
		default:
			if k >= '0' && k <= '9' {
				v := PresetSpeed(int(k - '0'))
				in.SetSpeed = &v
				in.SpeedDelta = 0
			}
		}
	}

	in.Forward = m.holds.Down('w', now)
	in.Reverse = m.holds.Down('s', now)
	in.Right = m.holds.Down('d', now)
	in.Left = m.holds.Down('a', now)
	return in
}

// Release forgets all held movement keys
func (m *Mapper) Release() {
	m.holds.Reset()
}

// PresetSpeed maps digit n (0-9) onto the speed range
func PresetSpeed(n int) int {
	return n * protocol.SpeedMax / 9
}
