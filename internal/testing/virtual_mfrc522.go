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

// Package testing provides test utilities including a register-level
// MFRC522 simulator.
//
// VirtualMFRC522 decodes SPI frames the way the chip does (datasheet
// section 8.1.2): the first byte carries a register address in bits 6..1
// and the read flag in bit 7. Read frames are a run of address bytes ended
// by a 0x00 stop byte, with each value clocked out one byte late. Write
// frames are one address byte followed by data bytes, all written to that
// address (which is how the FIFO is burst-loaded).
package testing

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// TransportType mirrors mfrc522.TransportType to avoid import cycle
type TransportType string

const (
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// Register addresses and bits the simulator reacts to (datasheet 9.2)
const (
	RegCommand    byte = 0x01
	RegComIrq     byte = 0x04
	RegFIFOData   byte = 0x09
	RegFIFOLevel  byte = 0x0A
	RegBitFraming byte = 0x0D
	RegTxControl  byte = 0x14
	RegVersion    byte = 0x37

	cmdIdle       byte = 0x00
	cmdTransceive byte = 0x0C

	irqTimer byte = 0x01
	irqIdle  byte = 0x10
	irqRx    byte = 0x20
	irqSet1  byte = 0x80

	fifoFlush byte = 0x80
	startSend byte = 0x80
	txLast7   byte = 0x07

	fifoDepth = 64

	piccReqA     byte = 0x26
	piccSelectCL byte = 0x93
	anticollNVB  byte = 0x20
)

// ErrSimulatedTransfer is returned by transfers after fault injection.
var ErrSimulatedTransfer = errors.New("simulated transfer failure")

// RegisterWrite records one register write seen on the bus
type RegisterWrite struct {
	Reg   byte
	Value byte
}

// VirtualMFRC522 simulates an MFRC522 and at most one ISO 14443A tag in its
// field. It satisfies the Transfer/Close/IsConnected part of
// mfrc522.Transport.
type VirtualMFRC522 struct {
	transferErr   error
	uid           []byte
	anticollReply []byte
	irqScript     []byte
	fifo          []byte
	frames        [][]byte
	writes        []RegisterWrite
	regs          [64]byte
	transfers     int
	failAfter     int
	mu            syncutil.Mutex
	closed        bool
	silent        bool
}

// NewVirtualMFRC522 creates a simulator with an empty field
func NewVirtualMFRC522() *VirtualMFRC522 {
	v := &VirtualMFRC522{failAfter: -1}
	v.regs[RegVersion] = 0x92
	v.regs[RegTxControl] = 0x80
	return v
}

// Transfer implements the full-duplex bus exchange.
func (v *VirtualMFRC522) Transfer(tx []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, errors.New("virtual MFRC522 is closed")
	}
	if v.transferErr != nil {
		return nil, v.transferErr
	}
	if v.failAfter >= 0 && v.transfers >= v.failAfter {
		return nil, ErrSimulatedTransfer
	}
	v.transfers++

	rx := make([]byte, len(tx))
	if len(tx) == 0 {
		return rx, nil
	}

	if tx[0]&0x80 != 0 {
		for i := 0; i < len(tx)-1; i++ {
			rx[i+1] = v.readReg((tx[i] >> 1) & 0x3F)
		}
		return rx, nil
	}

	addr := (tx[0] >> 1) & 0x3F
	for _, b := range tx[1:] {
		v.writeReg(addr, b)
	}
	return rx, nil
}

func (v *VirtualMFRC522) readReg(addr byte) byte {
	switch addr {
	case RegComIrq:
		if len(v.irqScript) > 0 {
			val := v.irqScript[0]
			v.irqScript = v.irqScript[1:]
			return val
		}
		return v.regs[RegComIrq]
	case RegFIFOLevel:
		return byte(len(v.fifo))
	case RegFIFOData:
		if len(v.fifo) == 0 {
			return 0
		}
		val := v.fifo[0]
		v.fifo = v.fifo[1:]
		return val
	default:
		return v.regs[addr]
	}
}

func (v *VirtualMFRC522) writeReg(addr, value byte) {
	v.writes = append(v.writes, RegisterWrite{Reg: addr, Value: value})

	switch addr {
	case RegFIFOData:
		if len(v.fifo) < fifoDepth {
			v.fifo = append(v.fifo, value)
		}
	case RegFIFOLevel:
		if value&fifoFlush != 0 {
			v.fifo = v.fifo[:0]
		}
	case RegComIrq:
		mask := value &^ irqSet1
		if value&irqSet1 != 0 {
			v.regs[RegComIrq] |= mask
		} else {
			v.regs[RegComIrq] &^= mask
		}
	case RegBitFraming:
		v.regs[addr] = value
		if value&startSend != 0 && v.regs[RegCommand] == cmdTransceive {
			v.transceive(value & 0x07)
		}
	default:
		v.regs[addr] = value
	}
}

// transceive answers the frame currently in the FIFO.
func (v *VirtualMFRC522) transceive(txLastBits byte) {
	frame := append([]byte(nil), v.fifo...)
	v.frames = append(v.frames, frame)
	v.fifo = v.fifo[:0]

	if v.silent {
		return
	}

	switch {
	case len(frame) == 1 && frame[0] == piccReqA && txLastBits == txLast7 && v.uid != nil:
		v.fifo = append(v.fifo, 0x04, 0x00) // ATQA, single size UID
		v.regs[RegComIrq] |= irqRx | irqIdle
	case len(frame) == 2 && frame[0] == piccSelectCL && frame[1] == anticollNVB &&
		txLastBits == 0 && v.uid != nil:
		v.fifo = append(v.fifo, v.anticollResponse()...)
		v.regs[RegComIrq] |= irqRx | irqIdle
	default:
		// Nobody answered; the TAuto timer runs out.
		v.regs[RegComIrq] |= irqTimer
	}
}

func (v *VirtualMFRC522) anticollResponse() []byte {
	if v.anticollReply != nil {
		return append([]byte(nil), v.anticollReply...)
	}
	bcc := v.uid[0] ^ v.uid[1] ^ v.uid[2] ^ v.uid[3]
	return append(append([]byte(nil), v.uid[:4]...), bcc)
}

// Close implements the transport Close
func (v *VirtualMFRC522) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

// IsConnected reports whether the simulator accepts transfers
func (v *VirtualMFRC522) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed && v.transferErr == nil
}

// Type returns the transport type
func (*VirtualMFRC522) Type() TransportType {
	return TransportMock
}

// Test helper methods

// PlaceTag puts a tag with the given 4-byte UID into the field
func (v *VirtualMFRC522) PlaceTag(uid []byte) error {
	if len(uid) != 4 {
		return fmt.Errorf("virtual tag UID must be 4 bytes, got %d", len(uid))
	}
	v.mu.Lock()
	v.uid = append([]byte(nil), uid...)
	v.mu.Unlock()
	return nil
}

// RemoveTag empties the field
func (v *VirtualMFRC522) RemoveTag() {
	v.mu.Lock()
	v.uid = nil
	v.mu.Unlock()
}

// SetAnticollisionReply overrides the bytes returned for anti-collision,
// e.g. to return a truncated frame. nil restores the default UID+BCC.
func (v *VirtualMFRC522) SetAnticollisionReply(reply []byte) {
	v.mu.Lock()
	v.anticollReply = reply
	v.mu.Unlock()
}

// SetSilent makes the chip never raise an interrupt for a transceive
func (v *VirtualMFRC522) SetSilent(silent bool) {
	v.mu.Lock()
	v.silent = silent
	v.mu.Unlock()
}

// ScriptIRQ queues ComIrqReg values returned by the next reads of that
// register, ahead of the simulated interrupt state.
func (v *VirtualMFRC522) ScriptIRQ(values ...byte) {
	v.mu.Lock()
	v.irqScript = append(v.irqScript, values...)
	v.mu.Unlock()
}

// SetTransferError makes every transfer fail with err (nil clears it)
func (v *VirtualMFRC522) SetTransferError(err error) {
	v.mu.Lock()
	v.transferErr = err
	v.mu.Unlock()
}

// FailAfter lets n more transfers succeed and fails every one after that.
// A negative n disables the fault.
func (v *VirtualMFRC522) FailAfter(n int) {
	v.mu.Lock()
	if n >= 0 {
		n += v.transfers
	}
	v.failAfter = n
	v.mu.Unlock()
}

// Register returns the simulated value of a register
func (v *VirtualMFRC522) Register(addr byte) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs[addr&0x3F]
}

// SetRegister presets a register value
func (v *VirtualMFRC522) SetRegister(addr, value byte) {
	v.mu.Lock()
	v.regs[addr&0x3F] = value
	v.mu.Unlock()
}

// Writes returns every register write seen so far
func (v *VirtualMFRC522) Writes() []RegisterWrite {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]RegisterWrite(nil), v.writes...)
}

// Frames returns every frame the chip was asked to transmit
func (v *VirtualMFRC522) Frames() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.frames))
	for i, f := range v.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Transfers returns the number of successful bus exchanges
func (v *VirtualMFRC522) Transfers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transfers
}
