// rcpanel drives an RC vehicle over a serial link from the keyboard
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"rcpanel/protocol"
)

const (
	// Global flags
	flagConfig  = "config"
	flagDebug   = "debug"
	flagLogFile = "log-file"

	// Link flags
	flagPort   = "port"
	flagBaud   = "baud"
	flagDriver = "driver"
	flagRate   = "rate"

	// Send flags
	flagDir      = "dir"
	flagSpeed    = "speed"
	flagTurn     = "turn"
	flagDuration = "duration"
)

func linkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagPort,
			Aliases: []string{"p"},
			Usage:   "serial device to preselect",
		},
		&cli.IntFlag{
			Name:    flagBaud,
			Aliases: []string{"b"},
			Usage:   "baud rate to preselect (9600, 19200, 38400, 57600, 115200)",
		},
		&cli.StringFlag{
			Name:  flagDriver,
			Usage: "serial driver: bugst (default, exclusive open) or tarm",
		},
		&cli.IntFlag{
			Name:  flagRate,
			Usage: "frames per second",
		},
	}
}

func newApp() *cli.App {
	runCmd := &cli.Command{
		Name:   "run",
		Usage:  "open the interactive control panel",
		Flags:  linkFlags(),
		Action: runAction,
	}

	return &cli.App{
		Name:    "rcpanel",
		Usage:   "drive an RC vehicle over a serial link",
		Version: protocol.Version,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load settings from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "log to `FILE` while the panel is open",
			},
		}, linkFlags()...),
		Action: runAction,
		Commands: []*cli.Command{
			runCmd,
			{
				Name:   "ports",
				Usage:  "list serial ports",
				Action: portsAction,
			},
			{
				Name:   "bauds",
				Usage:  "list supported baud rates",
				Action: baudsAction,
			},
			{
				Name:  "send",
				Usage: "transmit one fixed frame for a while, then stop the vehicle",
				Flags: append(linkFlags(),
					&cli.StringFlag{
						Name:  flagDir,
						Usage: "direction: f, n or r",
						Value: "n",
					},
					&cli.IntFlag{
						Name:  flagSpeed,
						Usage: "speed 0-255",
					},
					&cli.StringFlag{
						Name:  flagTurn,
						Usage: "turn: left, straight or right",
						Value: "straight",
					},
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "how long to keep sending",
						Value: defaultSendDuration,
					},
				),
				Action: sendAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
