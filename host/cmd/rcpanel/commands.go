package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"rcpanel/host/app"
	"rcpanel/host/config"
	"rcpanel/host/keyboard"
	"rcpanel/host/link"
	"rcpanel/host/logging"
	"rcpanel/host/ports"
	"rcpanel/host/serial"
	"rcpanel/protocol"
)

const defaultSendDuration = 2 * time.Second

// keyHelp is printed above the status line
const keyHelp = "w/a/s/d or arrows drive, +/- or 0-9 speed, p port, b baud, c connect, r refresh, q quit\r\n" +
	"a held key counts as released hold_window after its last repeat; raise it if the vehicle stutters before auto-repeat starts\r\n"

// loadConfig reads the config file and environment, then applies flags
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return cfg, err
	}

	if c.Bool(flagDebug) {
		cfg.Debug = true
	}
	if v := c.String(flagLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := c.String(flagPort); v != "" {
		cfg.Port = v
	}
	if v := c.Int(flagBaud); v != 0 {
		cfg.Baud = v
	}
	if v := c.String(flagDriver); v != "" {
		cfg.Driver = v
	}
	if v := c.Int(flagRate); v != 0 {
		cfg.TickRate = v
	}
	return cfg, cfg.Validate()
}

func runAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// The terminal belongs to the panel, so logs go to a file
	logger, flush := logging.New("rcpanel", logging.Options{Debug: cfg.Debug, File: cfg.LogFile})
	defer flush()

	term, err := keyboard.Open(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "the panel needs an interactive terminal")
	}
	defer func() {
		err = multierr.Combine(err, term.Restore())
	}()

	a, err := app.New(cfg, logger, app.Deps{
		Keys: term.Keys(),
		Out:  os.Stdout,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, keyHelp)
	return a.Run(c.Context)
}

func portsAction(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}
	dir := ports.NewDirectory(nil)
	names, err := dir.Refresh()
	if err != nil {
		return errors.Wrap(err, "listing serial ports")
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "no serial ports found")
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func baudsAction(c *cli.Context) error {
	for _, b := range serial.SupportedBauds {
		fmt.Println(b)
	}
	return nil
}

func sendAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, flush := logging.New("rcpanel", logging.Options{Debug: cfg.Debug})
	defer flush()

	if cfg.Port == "" || cfg.Baud == 0 {
		return errors.New("send needs --port and --baud")
	}

	dir, err := protocol.ParseDirection(c.String(flagDir))
	if err != nil {
		return err
	}
	turn, err := protocol.ParseTurn(c.String(flagTurn))
	if err != nil {
		return err
	}
	speed := c.Int(flagSpeed)
	if speed < protocol.SpeedMin || speed > protocol.SpeedMax {
		return errors.Errorf("speed %d out of range %d-%d", speed, protocol.SpeedMin, protocol.SpeedMax)
	}

	frame := protocol.NewFrame()
	frame.Set(protocol.SlotDirection, dir)
	frame.Set(protocol.SlotSpeed, byte(speed))
	frame.Set(protocol.SlotTurn, turn)

	l := link.New(cfg.LinkConfig(), logger.Named("link"))
	return sendFrames(c.Context, l, logger, sendOptions{
		Port:     cfg.Port,
		Baud:     cfg.Baud,
		Frame:    frame,
		Interval: cfg.TickInterval(),
		Duration: c.Duration(flagDuration),
	})
}
