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

package mfrc522

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// PollInterval is the sleep between interrupt register reads while a
	// transceive is in flight.
	PollInterval time.Duration
	// TransceiveTimeout bounds a single request/response exchange.
	TransceiveTimeout time.Duration
	// TimerPrescaler is the low byte of the internal timer prescaler.
	TimerPrescaler byte
	// TimerReload is the 16-bit internal timer reload value.
	TimerReload uint16
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		PollInterval:      10 * time.Microsecond,
		TransceiveTimeout: 25 * time.Millisecond,
		TimerPrescaler:    0x00,
		TimerReload:       0x0149,
	}
}

// Option configures a Device
type Option func(*Device) error

// WithPollInterval overrides the transceive poll interval
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) error {
		if interval <= 0 {
			return fmt.Errorf("%w: poll interval must be positive", ErrInvalidParameter)
		}
		d.config.PollInterval = interval
		return nil
	}
}

// WithTransceiveTimeout overrides the transceive timeout ceiling
func WithTransceiveTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: transceive timeout must be positive", ErrInvalidParameter)
		}
		d.config.TransceiveTimeout = timeout
		return nil
	}
}

// WithDeviceConfig replaces the whole device configuration
func WithDeviceConfig(config *DeviceConfig) Option {
	return func(d *Device) error {
		if config == nil {
			return fmt.Errorf("%w: nil device config", ErrInvalidParameter)
		}
		if config.PollInterval <= 0 || config.TransceiveTimeout <= 0 {
			return fmt.Errorf("%w: poll interval and transceive timeout must be positive", ErrInvalidParameter)
		}
		cfg := *config
		d.config = &cfg
		return nil
	}
}

// Device represents an MFRC522 reader chip on a serial bus.
//
// Thread Safety: Device is NOT thread-safe. The bus and the chip registers
// belong to whichever goroutine drives the device; only State may be read
// from elsewhere.
type Device struct {
	transport Transport
	config    *DeviceConfig
	state     atomic.Int32
}

// New creates a new MFRC522 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Config returns a copy of the active configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Close closes the underlying transport
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// transfer performs one bus exchange and enforces the full-duplex contract.
func (d *Device) transfer(op string, tx []byte) ([]byte, error) {
	rx, err := d.transport.Transfer(tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rx) != len(tx) {
		return nil, NewTransferFailedError(op, string(d.transport.Type()),
			fmt.Errorf("short transfer: sent %d bytes, received %d", len(tx), len(rx)))
	}
	return rx, nil
}

// WriteRegister writes value to a chip register with a two-byte frame
// [addr<<1, value].
func (d *Device) WriteRegister(addr, value byte) error {
	if addr > maxRegisterAddr {
		return fmt.Errorf("%w: register address 0x%02X out of range", ErrInvalidParameter, addr)
	}
	frame := []byte{regWriteOp | addr<<regAddrBit, value}
	if _, err := d.transfer(fmt.Sprintf("write register 0x%02X", addr), frame); err != nil {
		return err
	}
	return nil
}

// ReadRegister reads a chip register with a two-byte frame
// [0x80|addr<<1, 0x00]; the value arrives in the second response byte.
func (d *Device) ReadRegister(addr byte) (byte, error) {
	if addr > maxRegisterAddr {
		return 0, fmt.Errorf("%w: register address 0x%02X out of range", ErrInvalidParameter, addr)
	}
	frame := []byte{regReadOp | addr<<regAddrBit, readStop}
	rx, err := d.transfer(fmt.Sprintf("read register 0x%02X", addr), frame)
	if err != nil {
		return 0, err
	}
	return rx[1], nil
}

// setBits performs a read-modify-write that ORs mask into a register.
func (d *Device) setBits(addr, mask byte) error {
	value, err := d.ReadRegister(addr)
	if err != nil {
		return err
	}
	return d.WriteRegister(addr, value|mask)
}

// Version returns the chip's VersionReg (0x91 or 0x92 for genuine parts).
func (d *Device) Version() (byte, error) {
	return d.ReadRegister(VersionReg)
}

// Init pulses the hardware reset line when the transport has one, then
// configures the internal timer, the mode and modulation registers and
// switches the antenna drivers on. Register failures are returned as-is;
// Init never retries.
func (d *Device) Init(ctx context.Context) error {
	if resetter, ok := d.transport.(Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return fmt.Errorf("hardware reset: %w", err)
		}
	}

	writes := []struct {
		reg   byte
		value byte
	}{
		{TModeReg, tModeTAuto | tModePrescalerHi},
		{TPrescalerReg, d.config.TimerPrescaler},
		{TReloadRegH, byte(d.config.TimerReload >> 8)},
		{TReloadRegL, byte(d.config.TimerReload)},
		{ModeReg, modeTxWaitRF | modePolMFin | modeCRCPreset6363},
		{TxASKReg, txASKForce100},
	}
	for _, w := range writes {
		if err := d.WriteRegister(w.reg, w.value); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}

	if err := d.setBits(TxControlReg, txControlAntenna); err != nil {
		return fmt.Errorf("init: antenna on: %w", err)
	}

	Debugf("MFRC522 initialized (reload=0x%04X)", d.config.TimerReload)
	return nil
}
