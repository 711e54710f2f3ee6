// Package app runs the interactive control loop: keys in, frames out,
// status line on the terminal.
package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rcpanel/host/config"
	"rcpanel/host/keyboard"
	"rcpanel/host/link"
	"rcpanel/host/panel"
	"rcpanel/host/ports"
	"rcpanel/host/serial"
)

// ErrInterrupted is returned inside the group when a signal stops the app
var ErrInterrupted = errors.New("interrupted")

// Deps are the app's outside collaborators. Zero values use the real ones.
type Deps struct {
	// Opener opens serial ports; nil uses the configured driver
	Opener serial.Opener
	// Lister enumerates serial ports; nil uses serial.ListPorts
	Lister ports.Lister
	// Keys delivers key batches; required
	Keys <-chan []keyboard.Key
	// Out receives the status line; nil discards it
	Out io.Writer
}

// App is the running control panel
type App struct {
	cfg    config.Config
	logger *zap.SugaredLogger

	link   *link.Link
	panel  *panel.Panel
	mapper *keyboard.Mapper
	keys   <-chan []keyboard.Key
	out    io.Writer

	lastStatus string
}

// New wires the link, port directory, panel and key mapper together and
// applies the configured port and baud preselection
func New(cfg config.Config, logger *zap.SugaredLogger, deps Deps) (*App, error) {
	if deps.Keys == nil {
		return nil, errors.New("no key source")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	out := deps.Out
	if out == nil {
		out = io.Discard
	}

	linkCfg := cfg.LinkConfig()
	linkCfg.Opener = deps.Opener
	l := link.New(linkCfg, logger.Named("link"))

	p := panel.New(l, ports.NewDirectory(deps.Lister), logger.Named("panel"), panel.Options{
		SwapSteering: cfg.SwapSteering,
	})
	if err := p.Select(cfg.Port, cfg.Baud); err != nil {
		return nil, errors.Wrap(err, "preselecting port")
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		link:   l,
		panel:  p,
		mapper: keyboard.NewMapper(cfg.HoldWindow, cfg.SpeedStep),
		keys:   deps.Keys,
		out:    out,
	}, nil
}

// Run ticks the panel until the operator quits, the key source ends, a
// signal arrives or ctx is done. The link is closed on the way out.
func (a *App) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Combine(err, a.link.Close())
		io.WriteString(a.out, "\r\n")
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	// kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			a.logger.Infow("received signal", "signal", sig)
			return errors.Wrap(ErrInterrupted, sig.String())
		case <-groupCtx.Done():
			return groupCtx.Err()
		}
	})

	group.Go(func() error {
		return a.loop(groupCtx)
	})

	err = group.Wait()
	if errors.Is(err, panel.ErrQuit) || errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) loop(ctx context.Context) error {
	a.logger.Infow("control loop starting", "tick", a.cfg.TickInterval(), "ports", a.panel.PortOptions()[1:])

	ticker := time.NewTicker(a.cfg.TickInterval())
	defer ticker.Stop()

	last := time.Now()
	a.printStatus()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			keys, open := a.pending()
			in := a.mapper.Input(keys, now)
			if !open {
				in.Quit = true
			}

			err := a.panel.Tick(ctx, now.Sub(last), in)
			last = now
			a.printStatus()

			switch {
			case err == nil:
			case errors.Is(err, panel.ErrQuit):
				a.logger.Infow("quit requested")
				return err
			case errors.Is(err, link.ErrLinkLost):
				a.mapper.Release()
			default:
				a.logger.Debugw("tick error", "error", err)
			}
		}
	}
}

// pending collects every key batch waiting on the channel. open is false
// once the key source has ended.
func (a *App) pending() (keys []keyboard.Key, open bool) {
	for {
		select {
		case batch, ok := <-a.keys:
			if !ok {
				return keys, false
			}
			keys = append(keys, batch...)
		default:
			return keys, true
		}
	}
}

func (a *App) printStatus() {
	status := a.panel.Status()
	if status == a.lastStatus {
		return
	}
	a.lastStatus = status
	io.WriteString(a.out, "\r\x1b[K"+status)
}
