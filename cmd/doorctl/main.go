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

// Command doorctl runs an MFRC522 door access controller: it enrolls tags
// presented to the reader, asks the operator for permission with the
// joystick, and opens the door for permitted tags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/access"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"github.com/ZaparooProject/go-mfrc522/peripheral"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
	"github.com/spf13/pflag"
	"periph.io/x/host/v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := loadConfig(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// autoDevice is the --device value that asks for detection
const autoDevice = "auto"

// resolveDevice returns the SPI device to open, probing for one when asked.
func resolveDevice(ctx context.Context, path string, opts *detection.Options) (string, error) {
	if path != autoDevice {
		return path, nil
	}
	devices, err := detection.Detect(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("auto-detect reader: %w", err)
	}
	_, _ = fmt.Printf("Found %s\n", devices[0])
	return devices[0].Path, nil
}

// openReader opens the bus and configures the chip. Neither failure is
// fatal: a degraded reader just never sees a tag.
func openReader(ctx context.Context, cfg *config) (*mfrc522.Device, error) {
	var opts []spi.Option
	if cfg.ResetPin != "" {
		opts = append(opts, spi.WithResetPinName(cfg.ResetPin))
	}

	detectOpts := detection.DefaultOptions()
	detectOpts.EnableCache = false
	path, err := resolveDevice(ctx, cfg.SPIDevice, &detectOpts)
	if err != nil {
		return nil, err
	}

	transport, err := spi.Open(path, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: %v (continuing without a reader)\n", err)
	}

	device, err := mfrc522.New(transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create MFRC522 device: %w", err)
	}

	if err := device.Init(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		_, _ = fmt.Fprintf(os.Stderr, "Warning: MFRC522 init failed: %v\n", err)
		return device, nil
	}

	if version, err := device.Version(); err == nil {
		mfrc522.Debugf("MFRC522 version 0x%02X on %s", version, transport)
	}
	return device, nil
}

func openPeripherals(cfg *config, events access.EventLog) (access.Peripherals, error) {
	p := access.Peripherals{
		Countdown: peripheral.NewCountdown(nil),
		Log:       events,
	}

	if cfg.DoorPin == "" {
		_, _ = fmt.Println("No door pin configured, door movements are simulated")
		p.Door = &peripheral.MemoryDoor{}
	} else {
		door, err := peripheral.OpenDoor(cfg.DoorPin, cfg.DoorActiveLow)
		if err != nil {
			return p, err
		}
		p.Door = door
	}

	if cfg.LeftPin == "" || cfg.RightPin == "" {
		_, _ = fmt.Println("No joystick configured, new tags are enrolled without access")
		p.Input = peripheral.Fixed(access.Neutral)
	} else {
		js, err := peripheral.OpenJoystick(cfg.LeftPin, cfg.RightPin)
		if err != nil {
			return p, err
		}
		p.Input = js
	}
	return p, nil
}

func openEventLog(path string) (*peripheral.EventLog, io.Closer, error) {
	if path == "" {
		return peripheral.NewEventLog(os.Stdout, 0), nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	return peripheral.NewEventLog(f, 0), f, nil
}

func run(ctx context.Context, cfg *config) error {
	if cfg.Debug {
		mfrc522.SetDebugEnabled(true)
	}
	if syncutil.DeadlockDetection {
		syncutil.SetLockTimeout(shutdownTimeout)
		mfrc522.Debugf("deadlock detection enabled, lock timeout %s", shutdownTimeout)
	}
	if cfg.SessionLogDir != "" {
		path, err := mfrc522.InitSessionLog(cfg.SessionLogDir)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else {
			_, _ = fmt.Printf("Session log: %s\n", path)
			defer mfrc522.CloseSessionLog()
		}
	}

	// GPIO lookups below need the host drivers even if the SPI port failed.
	if _, err := host.Init(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: periph host init: %v\n", err)
	}

	device, err := openReader(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	events, file, err := openEventLog(cfg.EventLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Event log: %v\n", err)
		}
		if file != nil {
			_ = file.Close()
		}
	}()

	p, err := openPeripherals(cfg, events)
	if err != nil {
		return err
	}

	controller, err := access.NewController(device, p, cfg.accessConfig(),
		access.WithRecovery(access.NewInitRecoverer(device, 0, 0), access.DefaultRecoveryConfig()))
	if err != nil {
		return err
	}
	return serve(ctx, controller, os.Stdout)
}

// serve runs the controller until ctx ends or the operator quits, dumping
// the tag table on SIGUSR1 and once more on exit.
func serve(ctx context.Context, controller *access.Controller, out io.Writer) error {
	dump := make(chan os.Signal, 1)
	signal.Notify(dump, syscall.SIGUSR1)
	defer signal.Stop(dump)

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start access loop: %w", err)
	}
	_, _ = fmt.Fprintln(out, "Access control running. Hold right on the joystick or press Ctrl+C to stop...")

	for running := true; running; {
		select {
		case <-dump:
			_ = controller.Registry().WriteTable(out)
		case <-controller.Done():
			running = false
		case <-ctx.Done():
			running = false
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := controller.Stop(stopCtx); err != nil {
		return err
	}

	m := controller.GetMetrics()
	_, _ = fmt.Fprintf(out, "Polled %d times (%d bus errors, %d recoveries), %d detections, %d door openings\n",
		m.PollCycles, m.PollErrors, m.Recoveries, m.TagsDetected, m.DoorsOpened)
	if err := controller.Registry().WriteTable(out); err != nil {
		return err
	}
	return ctx.Err()
}
