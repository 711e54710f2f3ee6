// Package panel holds the operator panel state and the per-tick control
// logic: selecting a port and baud rate, connecting, and turning held
// controls into the command frame.
package panel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rcpanel/host/link"
	"rcpanel/host/ports"
	"rcpanel/host/serial"
	"rcpanel/protocol"
)

// Selector placeholders occupy index 0 of each option list
const (
	PortPlaceholder = "Serial Port"
	BaudPlaceholder = "Serial Baud Rate"
)

// Connect button labels
const (
	LabelConnect    = "Connect"
	LabelTrying     = "Trying..."
	LabelDisconnect = "Disconnect"
)

// ErrQuit is returned by Tick when the operator asked to leave
var ErrQuit = errors.New("quit requested")

// Link is the part of *link.Link the panel drives
type Link interface {
	Open(ctx context.Context, port string, baud int) error
	Close() error
	Set(slot int, value byte)
	Transmit() error
	Drain() (int, error)
	RecentRX(n int) []byte
	IsConnected() bool
	Stats() link.Stats
}

// Options tune panel behaviour
type Options struct {
	// SwapSteering sends left for the right control and vice versa
	SwapSteering bool
}

// Panel is the whole operator-visible state. It is owned by one control
// loop and is not safe for concurrent use.
type Panel struct {
	link   Link
	dir    *ports.Directory
	logger *zap.SugaredLogger
	opts   Options

	portOptions []string
	baudOptions []string

	// Selections index into the option lists; 0 is the placeholder
	PortIndex int
	BaudIndex int

	ConnectLabel      string
	ConnectDisabled   bool
	SelectorsDisabled bool
	NavDisabled       bool

	Speed int

	// Resolved outputs of the last tick
	Direction byte
	Turn      byte

	// Message is the last thing worth telling the operator
	Message string

	// Uptime is how long the current connection has been up
	Uptime time.Duration

	ioErrors uint64
}

// New sets up the panel: baud options, an initial port listing, nothing
// selected and the link closed
func New(l Link, dir *ports.Directory, logger *zap.SugaredLogger, opts Options) *Panel {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Panel{
		link:         l,
		dir:          dir,
		logger:       logger,
		opts:         opts,
		ConnectLabel: LabelConnect,
		NavDisabled:  true,
		Direction:    protocol.Neutral,
		Turn:         protocol.Straight,
	}

	p.baudOptions = []string{BaudPlaceholder}
	for _, b := range serial.SupportedBauds {
		p.baudOptions = append(p.baudOptions, strconv.Itoa(b))
	}

	p.portOptions = []string{PortPlaceholder}
	p.refreshPorts()
	return p
}

// PortOptions returns the port selector entries, placeholder first
func (p *Panel) PortOptions() []string {
	return append([]string(nil), p.portOptions...)
}

// BaudOptions returns the baud selector entries, placeholder first
func (p *Panel) BaudOptions() []string {
	return append([]string(nil), p.baudOptions...)
}

// SelectedPort returns the selected port name, or "" for the placeholder
func (p *Panel) SelectedPort() string {
	if p.PortIndex <= 0 || p.PortIndex >= len(p.portOptions) {
		return ""
	}
	return p.portOptions[p.PortIndex]
}

// SelectedBaud returns the selected baud rate, or 0 for the placeholder
func (p *Panel) SelectedBaud() int {
	if p.BaudIndex <= 0 || p.BaudIndex >= len(p.baudOptions) {
		return 0
	}
	b, err := serial.ParseBaud(p.baudOptions[p.BaudIndex])
	if err != nil {
		return 0
	}
	return b
}

// Select preselects a port and/or baud, as the command line flags do.
// An empty port or zero baud leaves that selection alone.
func (p *Panel) Select(port string, baud int) error {
	if port != "" {
		idx := p.dir.Index(port)
		if idx < 0 {
			return errors.Errorf("port %s not found (have %v)", port, p.dir.Snapshot())
		}
		p.PortIndex = idx + 1
	}
	if baud != 0 {
		idx := serial.BaudIndex(baud)
		if idx < 0 {
			return serial.ValidateBaud(baud)
		}
		p.BaudIndex = idx + 1
	}
	return nil
}

// IOErrors returns the number of transient I/O errors seen this session
func (p *Panel) IOErrors() uint64 {
	return p.ioErrors
}

// Tick runs one control-loop iteration: connection housekeeping, then
// set and transmit the full frame. It returns ErrQuit when asked to quit;
// other errors are transient and already reflected in Message.
func (p *Panel) Tick(ctx context.Context, dt time.Duration, in Input) error {
	// Selection must point at a real entry
	if p.PortIndex < 0 || p.PortIndex >= len(p.portOptions) {
		p.PortIndex = 0
		p.closeLink("port selection reset")
	}

	if in.CyclePort != 0 && !p.SelectorsDisabled {
		p.PortIndex = cycle(p.PortIndex, in.CyclePort, len(p.portOptions))
	}
	if in.CycleBaud != 0 && !p.SelectorsDisabled {
		p.BaudIndex = cycle(p.BaudIndex, in.CycleBaud, len(p.baudOptions))
	}

	p.ConnectDisabled = p.ConnectLabel == LabelConnect && (p.PortIndex == 0 || p.BaudIndex == 0)

	if in.Connect && !p.ConnectDisabled {
		if p.ConnectLabel == LabelConnect {
			p.connect(ctx)
		} else {
			p.closeLink("disconnected")
		}
	}

	if in.Refresh {
		p.refreshPorts()
	}

	if in.Quit {
		return ErrQuit
	}

	p.NavDisabled = !p.SelectorsDisabled
	if p.link.IsConnected() {
		p.Uptime += dt
	}

	if !p.NavDisabled {
		if in.SetSpeed != nil {
			p.Speed = *in.SetSpeed
		}
		p.Speed = ClampSpeed(p.Speed + in.SpeedDelta)
	}

	var tickErr error

	n, err := p.link.Drain()
	if err != nil {
		p.ioErrors++
		p.Message = "rx error: " + err.Error()
		tickErr = err
	}
	if n > 0 {
		p.logger.Debugw("discarded rx",
			"bytes", n,
			"recent", fmt.Sprintf("% x", p.link.RecentRX(n)),
			"dropped", p.link.Stats().RXDropped)
	}

	p.Direction = ResolveDirection(in.Forward, in.Reverse)
	p.Turn = ResolveTurn(in.Left, in.Right, p.opts.SwapSteering)

	p.link.Set(protocol.SlotDirection, protocol.Neutral)
	p.link.Set(protocol.SlotSpeed, byte(p.Speed))
	p.link.Set(protocol.SlotTurn, protocol.Straight)
	if p.Direction != protocol.Neutral {
		p.link.Set(protocol.SlotDirection, p.Direction)
	}
	if p.Turn != protocol.Straight {
		p.link.Set(protocol.SlotTurn, p.Turn)
	}

	if err := p.link.Transmit(); err != nil {
		p.ioErrors++
		tickErr = err
		if errors.Is(err, link.ErrLinkLost) {
			p.logger.Warnw("link lost, checking ports", "error", err)
			p.afterDisconnect("link lost: " + err.Error())
			p.refreshPorts()
		} else {
			p.Message = "tx error: " + err.Error()
		}
	}

	return tickErr
}

// connect is the Connect button: close, lock the selectors, try to open
func (p *Panel) connect(ctx context.Context) {
	p.closeLink("")

	p.SelectorsDisabled = true
	p.ConnectLabel = LabelTrying

	port, baud := p.SelectedPort(), p.SelectedBaud()
	p.logger.Infow("connecting", "port", port, "baud", baud)

	if err := p.link.Open(ctx, port, baud); err != nil {
		p.ConnectLabel = LabelConnect
		p.SelectorsDisabled = false
		p.Message = "failed: " + err.Error()
		return
	}

	p.ConnectLabel = LabelDisconnect
	p.Uptime = 0
	p.Message = fmt.Sprintf("connected to %s at %d baud", port, baud)
}

// closeLink closes the link and unlocks the selectors. A non-empty msg
// replaces the status message.
func (p *Panel) closeLink(msg string) {
	if err := p.link.Close(); err != nil {
		p.logger.Warnw("error closing link", "error", err)
	}
	p.afterDisconnect(msg)
}

func (p *Panel) afterDisconnect(msg string) {
	p.SelectorsDisabled = false
	p.ConnectLabel = LabelConnect
	if msg != "" {
		p.Message = msg
	}
}

// refreshPorts re-reads the port directory. The selection follows its port
// by name; if the port is gone the selection resets and the link closes.
func (p *Panel) refreshPorts() {
	selected := p.SelectedPort()

	names, err := p.dir.Refresh()
	if err != nil {
		p.logger.Warnw("port refresh failed", "error", err)
		p.Message = "refresh failed: " + err.Error()
	}
	p.portOptions = append([]string{PortPlaceholder}, names...)

	if selected == "" {
		p.PortIndex = 0
		return
	}
	idx := p.dir.Index(selected)
	if idx < 0 {
		p.logger.Infow("selected port vanished", "port", selected)
		p.PortIndex = 0
		p.closeLink(fmt.Sprintf("port %s vanished", selected))
		return
	}
	p.PortIndex = idx + 1
}

func cycle(i, step, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i+step)%n + n) % n
}
