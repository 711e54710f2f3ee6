package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"rcpanel/host/serial"
)

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "reading config file")
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", path)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML over cfg; keys missing from data keep their value.
// Unknown keys are rejected so typos do not go unnoticed.
func Parse(data []byte, cfg *Config) error {
	return yaml.UnmarshalStrict(data, cfg)
}

// Validate checks every field and reports all problems at once
func (c Config) Validate() error {
	var errs error

	if c.Baud != 0 {
		errs = multierr.Append(errs, serial.ValidateBaud(c.Baud))
	}
	if _, ok := serial.Drivers[c.Driver]; !ok {
		errs = multierr.Append(errs, errors.Wrapf(serial.ErrUnknownDriver, "driver %q (have %v)", c.Driver, serial.DriverNames()))
	}
	if c.TickRate < 1 || c.TickRate > 1000 {
		errs = multierr.Append(errs, errors.Errorf("tick_rate %d out of range 1-1000", c.TickRate))
	}
	if c.ReadTimeout < 0 {
		errs = multierr.Append(errs, errors.New("read_timeout must not be negative"))
	}
	if c.ConnectTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("connect_timeout must be positive"))
	}
	if c.WriteTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("write_timeout must be positive"))
	}
	if c.MaxIOFailures < 0 {
		errs = multierr.Append(errs, errors.New("max_io_failures must not be negative"))
	}
	if c.RXHistory < 1 {
		errs = multierr.Append(errs, errors.New("rx_history must be at least 1"))
	}
	if c.HoldWindow <= 0 {
		errs = multierr.Append(errs, errors.New("hold_window must be positive"))
	}
	if c.SpeedStep < 1 || c.SpeedStep > 255 {
		errs = multierr.Append(errs, errors.Errorf("speed_step %d out of range 1-255", c.SpeedStep))
	}

	return errs
}
