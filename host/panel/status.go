package panel

import (
	"fmt"
	"strings"
	"time"

	"rcpanel/protocol"
)

// SpeedLabel renders the speed readout the way the slider caption did
func SpeedLabel(speed int) string {
	return fmt.Sprintf("Move Speed: %4d", speed)
}

// Status renders the one-line readout:
// port | baud | button | movement | counters | message
func (p *Panel) Status() string {
	port := p.SelectedPort()
	if port == "" {
		port = PortPlaceholder
	}
	baud := BaudPlaceholder
	if b := p.SelectedBaud(); b != 0 {
		baud = fmt.Sprintf("%d", b)
	}

	button := "[" + p.ConnectLabel + "]"
	if p.ConnectDisabled {
		button = "(" + p.ConnectLabel + ")"
	}

	parts := []string{port, baud, button}

	if p.NavDisabled {
		parts = append(parts, "nav off")
	} else {
		parts = append(parts, fmt.Sprintf("%s %s %s",
			protocol.DirectionName(p.Direction), SpeedLabel(p.Speed), protocol.TurnName(p.Turn)))
	}

	if p.link.IsConnected() {
		st := p.link.Stats()
		parts = append(parts, fmt.Sprintf("up %s tx %d err %d rx %d drop %d",
			p.Uptime.Truncate(time.Second), st.Frames, p.ioErrors, st.RXBytes, st.RXDropped))
	}

	if p.Message != "" {
		parts = append(parts, p.Message)
	}
	return strings.Join(parts, " | ")
}
