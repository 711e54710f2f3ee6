package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ApplyEnv overrides c with any RCPANEL_* variables that are set.
// Unparseable values are reported and leave the field unchanged.
func ApplyEnv(c *Config) error {
	var errs error
	note := func(err error) { errs = multierr.Append(errs, err) }

	c.Port = GetStringEnv("PORT", c.Port)
	c.Baud = GetIntEnv("BAUD", c.Baud, note)
	c.Driver = strings.ToLower(GetStringEnv("DRIVER", c.Driver))
	c.ReadTimeout = GetDurationEnv("READ_TIMEOUT", c.ReadTimeout, note)
	c.ConnectTimeout = GetDurationEnv("CONNECT_TIMEOUT", c.ConnectTimeout, note)
	c.WriteTimeout = GetDurationEnv("WRITE_TIMEOUT", c.WriteTimeout, note)
	c.MaxIOFailures = GetIntEnv("MAX_IO_FAILURES", c.MaxIOFailures, note)
	c.RXHistory = GetIntEnv("RX_HISTORY", c.RXHistory, note)
	c.TickRate = GetIntEnv("TICK_RATE", c.TickRate, note)
	c.HoldWindow = GetDurationEnv("HOLD_WINDOW", c.HoldWindow, note)
	c.SpeedStep = GetIntEnv("SPEED_STEP", c.SpeedStep, note)
	c.SwapSteering = GetBoolEnv("SWAP_STEERING", c.SwapSteering, note)
	c.LogFile = GetStringEnv("LOG_FILE", c.LogFile)
	c.Debug = GetBoolEnv("DEBUG", c.Debug, note)
	return errs
}

// GetStringEnv returns AppEnvBase+env, or defaultValue when unset.
// Device paths are case sensitive so the value is only trimmed.
func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return strings.TrimSpace(strings.Trim(envValue, "\r"))
}

func GetIntEnv(env string, defaultValue int, onErr func(error)) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	value, err := strconv.ParseInt(strings.TrimSpace(strings.Trim(envValue, "\r")), 10, 32)
	if err != nil {
		onErr(errors.Wrapf(err, "%s%s not parsed", AppEnvBase, env))
		return defaultValue
	}
	return int(value)
}

func GetBoolEnv(env string, defaultValue bool, onErr func(error)) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.TrimSpace(strings.Trim(envValue, "\r")))
	if err != nil {
		onErr(errors.Wrapf(err, "%s%s not parsed", AppEnvBase, env))
		return defaultValue
	}
	return value
}

func GetDurationEnv(env string, defaultValue time.Duration, onErr func(error)) time.Duration {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(strings.Trim(envValue, "\r")))
	if err != nil {
		onErr(errors.Wrapf(err, "%s%s not parsed", AppEnvBase, env))
		return defaultValue
	}
	return value
}
