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

// Package peripheral provides GPIO and software implementations of the
// collaborators the access controller drives: the door strike, the
// operator joystick, the open-time countdown and the event log.
package peripheral

import (
	"fmt"

	"github.com/ZaparooProject/go-mfrc522/access"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Door drives a door strike or lock relay from one GPIO line
type Door struct {
	pin       gpio.PinOut
	mu        syncutil.Mutex
	pos       access.Position
	activeLow bool
}

// NewDoor takes ownership of pin and drives it to the closed level.
// With activeLow the line is pulled low to open.
func NewDoor(pin gpio.PinOut, activeLow bool) (*Door, error) {
	if pin == nil {
		return nil, fmt.Errorf("door: nil pin")
	}
	d := &Door{pin: pin, activeLow: activeLow}
	if err := d.SetPosition(access.Closed); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDoor looks the pin up by name in the periph GPIO registry
func OpenDoor(name string, activeLow bool) (*Door, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("door: GPIO %q not found", name)
	}
	return NewDoor(pin, activeLow)
}

func (d *Door) level(p access.Position) gpio.Level {
	open := p == access.Open
	if d.activeLow {
		return gpio.Level(!open)
	}
	return gpio.Level(open)
}

// SetPosition drives the line. The recorded position only changes when the
// write succeeds.
func (d *Door) SetPosition(p access.Position) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.pin.Out(d.level(p)); err != nil {
		return fmt.Errorf("door %s: %w", d.pin, err)
	}
	d.pos = p
	return nil
}

// Position returns the last position successfully driven
func (d *Door) Position() access.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

// MemoryDoor only remembers its position. doorctl uses it when no strike is
// wired, so the access loop can be exercised on a bare board.
type MemoryDoor struct {
	mu  syncutil.Mutex
	pos access.Position
}

// SetPosition records p
func (d *MemoryDoor) SetPosition(p access.Position) error {
	d.mu.Lock()
	d.pos = p
	d.mu.Unlock()
	return nil
}

// Position returns the last recorded position
func (d *MemoryDoor) Position() access.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}
