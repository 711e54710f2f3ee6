// Package config loads rcpanel settings.
//
// Values come from, in increasing priority: built-in defaults, a YAML file,
// RCPANEL_* environment variables, then command line flags applied by the
// caller.
package config

import (
	"fmt"
	"time"

	"rcpanel/host/keyboard"
	"rcpanel/host/link"
	"rcpanel/host/serial"
)

const (
	AppEnvBase = "RCPANEL_"

	DefaultTickRate   = 50 // Hz
	DefaultHoldWindow = keyboard.DefaultHoldWindow
	DefaultSpeedStep  = 5
	DefaultLogFile    = "rcpanel.log"
)

// Config holds every rcpanel setting
type Config struct {
	// Serial selection; empty/zero means "choose in the panel"
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	Driver         string        `yaml:"driver"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxIOFailures  int           `yaml:"max_io_failures"`
	RXHistory      int           `yaml:"rx_history"`

	// Control loop
	TickRate     int           `yaml:"tick_rate"`
	HoldWindow   time.Duration `yaml:"hold_window"`
	SpeedStep    int           `yaml:"speed_step"`
	SwapSteering bool          `yaml:"swap_steering"`

	// Logging
	LogFile string `yaml:"log_file"`
	Debug   bool   `yaml:"debug"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Driver:         serial.DefaultDriver,
		ReadTimeout:    serial.DefaultReadTimeout,
		ConnectTimeout: serial.DefaultConnectTimeout,
		WriteTimeout:   serial.DefaultWriteTimeout,
		MaxIOFailures:  link.DefaultMaxFailures,
		RXHistory:      link.DefaultHistorySize,
		TickRate:       DefaultTickRate,
		HoldWindow:     DefaultHoldWindow,
		SpeedStep:      DefaultSpeedStep,
		LogFile:        DefaultLogFile,
	}
}

// TickInterval converts TickRate to a ticker period
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / DefaultTickRate
	}
	return time.Second / time.Duration(c.TickRate)
}

// LinkConfig returns the link settings
func (c Config) LinkConfig() link.Config {
	return link.Config{
		Driver:         c.Driver,
		ReadTimeout:    c.ReadTimeout,
		ConnectTimeout: c.ConnectTimeout,
		WriteTimeout:   c.WriteTimeout,
		MaxFailures:    c.MaxIOFailures,
		HistorySize:    c.RXHistory,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("port=%q baud=%d driver=%s tick_rate=%dHz connect_timeout=%v write_timeout=%v max_io_failures=%d hold_window=%v speed_step=%d swap_steering=%t log_file=%q debug=%t",
		c.Port, c.Baud, c.Driver, c.TickRate, c.ConnectTimeout, c.WriteTimeout, c.MaxIOFailures, c.HoldWindow, c.SpeedStep, c.SwapSteering, c.LogFile, c.Debug)
}
