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

// Package spi provides the SPI bus transport for an MFRC522 on Linux spidev,
// with an optional GPIO line wired to the chip's NRSTPD pin.
package spi

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// Default SPI settings
	defaultFreq = 1 * physic.MegaHertz
	mode        = spi.Mode0 // CPOL=0, CPHA=0, MSB first
	bitsPerWord = 8

	// NRSTPD timing: hold low long enough to be seen, then let the
	// oscillator start before the first register access.
	resetLowTime  = 1 * time.Millisecond
	resetStartup  = 50 * time.Millisecond
	defaultDevice = "/dev/spidev1.0"
)

// Transport implements the mfrc522.Transport interface for SPI communication.
//
// A Transport whose port could not be opened or configured is degraded: it
// is still returned from Open so the caller can carry on, but every
// Transfer fails fast with mfrc522.ErrNotInitialized.
type Transport struct {
	port      spi.PortCloser
	conn      spi.Conn
	resetPin  gpio.PinOut
	openErr   error
	portName  string
	resetName string
	freq      physic.Frequency
	mu        syncutil.Mutex
	closed    bool
}

// Option configures a Transport before the port is connected
type Option func(*Transport)

// WithFrequency overrides the 1 MHz default bus clock
func WithFrequency(freq physic.Frequency) Option {
	return func(t *Transport) {
		t.freq = freq
	}
}

// WithResetPin uses pin as the chip reset line
func WithResetPin(pin gpio.PinOut) Option {
	return func(t *Transport) {
		t.resetPin = pin
	}
}

// WithResetPinName looks the reset line up in the periph GPIO registry
// (e.g. "GPIO49" or "P9_23") when the transport is opened.
func WithResetPinName(name string) Option {
	return func(t *Transport) {
		t.resetName = name
	}
}

// Open initializes the periph host drivers, opens the SPI port and sets
// mode 0. The returned Transport is never nil; when the error is non-nil
// it is degraded and wraps mfrc522.ErrDeviceUnavailable.
func Open(portName string, opts ...Option) (*Transport, error) {
	if portName == "" {
		portName = defaultDevice
	}

	if _, err := host.Init(); err != nil {
		t := newDegraded(portName, opts)
		t.openErr = mfrc522.NewDeviceUnavailableError("host init", portName, err)
		return t, t.openErr
	}

	port, err := spireg.Open(portName)
	if err != nil {
		t := newDegraded(portName, opts)
		t.openErr = mfrc522.NewDeviceUnavailableError("open", portName, err)
		return t, t.openErr
	}

	return newTransport(portName, port, opts...)
}

func newDegraded(portName string, opts []Option) *Transport {
	t := &Transport{portName: portName, freq: defaultFreq}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// newTransport connects an already opened port. A failed Connect leaves the
// port open but the transport degraded.
func newTransport(portName string, port spi.PortCloser, opts ...Option) (*Transport, error) {
	t := newDegraded(portName, opts)
	t.port = port

	if t.resetPin == nil && t.resetName != "" {
		if pin := gpioreg.ByName(t.resetName); pin != nil {
			t.resetPin = pin
		} else {
			mfrc522.Debugf("spi: reset pin %s not found, continuing without hardware reset", t.resetName)
		}
	}

	conn, err := port.Connect(t.freq, mode, bitsPerWord)
	if err != nil {
		t.openErr = mfrc522.NewDeviceUnavailableError("set mode", portName, err)
		return t, t.openErr
	}
	t.conn = conn

	mfrc522.Debugf("spi: opened %s at %s, mode 0", portName, t.freq)
	return t, nil
}

// Transfer performs one full-duplex exchange of len(tx) bytes
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.conn == nil {
		return nil, mfrc522.NewNotInitializedError("Transfer", t.portName)
	}

	rx := make([]byte, len(tx))
	if err := t.conn.Tx(tx, rx); err != nil {
		return nil, mfrc522.NewTransferFailedError("Transfer", t.portName, err)
	}
	return rx, nil
}

// Reset pulses the reset line low then high and waits for the chip to come
// up. It is a no-op without a reset pin.
func (t *Transport) Reset(ctx context.Context) error {
	if t.resetPin == nil {
		return nil
	}

	if err := t.resetPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("reset line low: %w", err)
	}
	if err := sleepContext(ctx, resetLowTime); err != nil {
		return err
	}
	if err := t.resetPin.Out(gpio.High); err != nil {
		return fmt.Errorf("reset line high: %w", err)
	}
	return sleepContext(ctx, resetStartup)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error that degraded the transport, if any
func (t *Transport) Err() error {
	return t.openErr
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			return fmt.Errorf("SPI close failed: %w", err)
		}
	}
	return nil
}

// IsConnected returns true if transfers can be issued
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.conn != nil
}

// Type returns the transport type
func (*Transport) Type() mfrc522.TransportType {
	return mfrc522.TransportSPI
}

// String returns the SPI device path
func (t *Transport) String() string {
	return t.portName
}
