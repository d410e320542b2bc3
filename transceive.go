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
	"errors"
	"fmt"
)

// Status is the chip-level outcome of one exchange. Bus failures are not
// statuses; they travel in the accompanying error.
type Status int

const (
	// StatusOK means the chip signalled receive-complete or idle.
	StatusOK Status = iota
	// StatusProtocolError means the chip's own timer expired first, which
	// is what happens when no tag answers.
	StatusProtocolError
	// StatusTimeout means no interrupt arrived within the host-side ceiling.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusProtocolError:
		return "protocol error"
	case StatusTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Err maps a non-OK status to its sentinel error.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusTimeout:
		return ErrTimeout
	default:
		return ErrProtocol
	}
}

// State is the transceive engine's position within one exchange.
type State int32

const (
	StateIdle State = iota
	StateFlushing
	StateLoaded
	StateTransmitting
	StatePolling
	StateCompleted
	StateErrored
	StateTimedOut
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateFlushing:     "flushing",
	StateLoaded:       "loaded",
	StateTransmitting: "transmitting",
	StatePolling:      "polling",
	StateCompleted:    "completed",
	StateErrored:      "errored",
	StateTimedOut:     "timed out",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// State reports where the engine is; it is StateIdle between exchanges.
func (d *Device) State() State {
	return State(d.state.Load())
}

func (d *Device) setState(s State) {
	d.state.Store(int32(s))
}

// errTimerIRQ stops the completion poll when the chip timer fires.
var errTimerIRQ = errors.New("timer interrupt")

// Transceive transmits tx through the FIFO and waits for the chip to report
// completion. On StatusOK up to maxRx bytes are read back, clamped to the
// FIFO level the chip reports. On any other status the returned slice is
// nil. The error is non-nil only when the bus itself failed or ctx was
// cancelled; the chip is put back into Idle in every case.
func (d *Device) Transceive(ctx context.Context, tx []byte, maxRx int) ([]byte, Status, error) {
	defer d.setState(StateIdle)

	status, err := d.exchange(ctx, tx)
	if cleanupErr := d.stopTransceive(); err == nil {
		err = cleanupErr
	}
	if err != nil {
		d.setState(StateErrored)
		return nil, StatusProtocolError, err
	}

	switch status {
	case StatusOK:
		d.setState(StateCompleted)
	case StatusTimeout:
		d.setState(StateTimedOut)
		return nil, status, nil
	default:
		d.setState(StateErrored)
		return nil, status, nil
	}

	if maxRx <= 0 {
		return nil, StatusOK, nil
	}

	level, err := d.ReadRegister(FIFOLevelReg)
	if err != nil {
		return nil, StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}
	n := min(maxRx, int(level&fifoLevelMask))

	rx, err := d.ReadFIFO(n)
	if err != nil {
		return nil, StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}
	return rx, StatusOK, nil
}

// exchange runs the load/start/poll part of a transceive.
func (d *Device) exchange(ctx context.Context, tx []byte) (Status, error) {
	d.setState(StateFlushing)
	if err := d.WriteRegister(CommandReg, CmdIdle); err != nil {
		return StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}
	if err := d.WriteRegister(FIFOLevelReg, fifoFlushBuffer); err != nil {
		return StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}
	if err := d.WriteRegister(ComIrqReg, clearAllIRQs); err != nil {
		return StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}

	if err := d.WriteFIFO(tx); err != nil {
		return StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}
	d.setState(StateLoaded)

	if err := d.WriteRegister(CommandReg, CmdTransceive); err != nil {
		return StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}
	d.setState(StateTransmitting)
	if err := d.setBits(BitFramingReg, bitFramingStartSend); err != nil {
		return StatusProtocolError, fmt.Errorf("transceive: start send: %w", err)
	}

	d.setState(StatePolling)
	return d.waitCompletion(ctx)
}

// waitCompletion polls ComIrqReg until the chip reports receive/idle, its
// timer fires, or the host-side ceiling passes.
func (d *Device) waitCompletion(ctx context.Context) (Status, error) {
	poller := Poller{
		Interval: d.config.PollInterval,
		Timeout:  d.config.TransceiveTimeout,
	}

	err := poller.Poll(ctx, func() (bool, error) {
		irq, err := d.ReadRegister(ComIrqReg)
		if err != nil {
			return false, err
		}
		if irq&(irqRx|irqIdle) != 0 {
			return true, nil
		}
		if irq&irqTimer != 0 {
			return false, errTimerIRQ
		}
		return false, nil
	})

	switch {
	case err == nil:
		return StatusOK, nil
	case errors.Is(err, errTimerIRQ):
		return StatusProtocolError, nil
	case errors.Is(err, ErrDeadlineExceeded):
		return StatusTimeout, nil
	default:
		return StatusProtocolError, fmt.Errorf("transceive: %w", err)
	}
}

// stopTransceive clears BitFramingReg (StartSend and TxLastBits, so the
// next frame is sent whole) and forces the command register back to Idle.
func (d *Device) stopTransceive() error {
	bfErr := d.WriteRegister(BitFramingReg, 0x00)
	cmdErr := d.WriteRegister(CommandReg, CmdIdle)
	if err := errors.Join(bfErr, cmdErr); err != nil {
		return fmt.Errorf("transceive: stop: %w", err)
	}
	return nil
}
