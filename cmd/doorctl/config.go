// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/go-mfrc522/access"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	envSPIDevice = detection.EnvSPIDevice
	envResetPin  = "MFRC522_RESET_PIN"
)

// config is the doorctl configuration. Values are resolved from defaults,
// then the YAML file, then the environment, then explicitly set flags.
type config struct {
	SPIDevice     string        `yaml:"spi_device"`
	ResetPin      string        `yaml:"reset_pin"`
	DoorPin       string        `yaml:"door_pin"`
	LeftPin       string        `yaml:"left_pin"`
	RightPin      string        `yaml:"right_pin"`
	EventLog      string        `yaml:"event_log"`
	SessionLogDir string        `yaml:"session_log_dir"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
	OpenDuration  time.Duration `yaml:"open_duration"`
	Capacity      int           `yaml:"capacity"`
	DoorActiveLow bool          `yaml:"door_active_low"`
	Debug         bool          `yaml:"debug"`
}

func defaultConfig() *config {
	ac := access.DefaultConfig()
	return &config{
		SPIDevice:    "/dev/spidev1.0",
		ResetPin:     "P9_23",
		PollInterval: ac.PollInterval,
		SettleDelay:  ac.SettleDelay,
		OpenDuration: ac.OpenDuration,
		Capacity:     ac.Capacity,
	}
}

// accessConfig converts to the controller's configuration
func (c *config) accessConfig() *access.Config {
	ac := access.DefaultConfig()
	ac.PollInterval = c.PollInterval
	ac.SettleDelay = c.SettleDelay
	ac.OpenDuration = c.OpenDuration
	ac.Capacity = c.Capacity
	return ac
}

// loadConfig resolves the configuration for args (without the program
// name). getenv is os.Getenv outside tests.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (*config, error) {
	cfg := defaultConfig()

	// Flags are parsed into a scratch copy so that only the ones the user
	// actually set override the file and the environment.
	flagged := *cfg
	var configPath string
	fs := pflag.NewFlagSet("doorctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	fs.StringVarP(&flagged.SPIDevice, "device", "d", flagged.SPIDevice, "SPI device path or \"auto\" to probe spidev nodes (env "+envSPIDevice+")")
	fs.StringVar(&flagged.ResetPin, "reset-pin", flagged.ResetPin, "GPIO wired to NRSTPD, empty for none (env "+envResetPin+")")
	fs.StringVar(&flagged.DoorPin, "door-pin", flagged.DoorPin, "GPIO driving the door strike, empty to simulate")
	fs.BoolVar(&flagged.DoorActiveLow, "door-active-low", flagged.DoorActiveLow, "Drive the door pin low to open")
	fs.StringVar(&flagged.LeftPin, "left-pin", flagged.LeftPin, "GPIO of the joystick left (grant) button")
	fs.StringVar(&flagged.RightPin, "right-pin", flagged.RightPin, "GPIO of the joystick right (quit) button")
	fs.StringVar(&flagged.EventLog, "event-log", flagged.EventLog, "Append access events to this file instead of stdout")
	fs.StringVar(&flagged.SessionLogDir, "session-log-dir", flagged.SessionLogDir, "Write a debug session log in this directory")
	fs.DurationVar(&flagged.PollInterval, "poll-interval", flagged.PollInterval, "Delay between detection attempts")
	fs.DurationVar(&flagged.SettleDelay, "settle-delay", flagged.SettleDelay, "How long the door stays open before the first close")
	fs.DurationVar(&flagged.OpenDuration, "open-duration", flagged.OpenDuration, "Countdown armed when the door reopens")
	fs.IntVar(&flagged.Capacity, "capacity", flagged.Capacity, "Maximum number of enrolled tags")
	fs.BoolVar(&flagged.Debug, "debug", flagged.Debug, "Enable debug output")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage of doorctl:\n%s", fs.FlagUsages())
	}
	if err := fs.Parse(args); err != nil {
		// ContinueOnError leaves parse failures silent; --help already printed.
		if !errors.Is(err, pflag.ErrHelp) {
			fs.Usage()
		}
		return nil, err
	}

	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	if v := getenv(envSPIDevice); v != "" {
		cfg.SPIDevice = v
	}
	if v, ok := lookupEnv(getenv, envResetPin); ok {
		cfg.ResetPin = v
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "device":
			cfg.SPIDevice = flagged.SPIDevice
		case "reset-pin":
			cfg.ResetPin = flagged.ResetPin
		case "door-pin":
			cfg.DoorPin = flagged.DoorPin
		case "door-active-low":
			cfg.DoorActiveLow = flagged.DoorActiveLow
		case "left-pin":
			cfg.LeftPin = flagged.LeftPin
		case "right-pin":
			cfg.RightPin = flagged.RightPin
		case "event-log":
			cfg.EventLog = flagged.EventLog
		case "session-log-dir":
			cfg.SessionLogDir = flagged.SessionLogDir
		case "poll-interval":
			cfg.PollInterval = flagged.PollInterval
		case "settle-delay":
			cfg.SettleDelay = flagged.SettleDelay
		case "open-duration":
			cfg.OpenDuration = flagged.OpenDuration
		case "capacity":
			cfg.Capacity = flagged.Capacity
		case "debug":
			cfg.Debug = flagged.Debug
		}
	})

	if err := cfg.accessConfig().Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lookupEnv treats the value "none" as an explicit empty setting.
func lookupEnv(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	switch v {
	case "":
		return "", false
	case "none":
		return "", true
	default:
		return v, true
	}
}

func (c *config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.SPIDevice == "" {
		return errors.New("config: spi_device must not be empty")
	}
	return nil
}
