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

package peripheral

import (
	"fmt"

	"github.com/ZaparooProject/go-mfrc522/access"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Joystick reads the operator's left/right selection from two
// active-low buttons with pull-ups.
type Joystick struct {
	left  gpio.PinIn
	right gpio.PinIn
}

// NewJoystick configures both pins as pulled-up inputs
func NewJoystick(left, right gpio.PinIn) (*Joystick, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("joystick: nil pin")
	}
	for _, pin := range []gpio.PinIn{left, right} {
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("joystick %s: %w", pin, err)
		}
	}
	return &Joystick{left: left, right: right}, nil
}

// OpenJoystick looks both pins up by name in the periph GPIO registry
func OpenJoystick(leftName, rightName string) (*Joystick, error) {
	left := gpioreg.ByName(leftName)
	if left == nil {
		return nil, fmt.Errorf("joystick: GPIO %q not found", leftName)
	}
	right := gpioreg.ByName(rightName)
	if right == nil {
		return nil, fmt.Errorf("joystick: GPIO %q not found", rightName)
	}
	return NewJoystick(left, right)
}

// Input returns the pressed direction. Right wins if both are held.
func (j *Joystick) Input() access.Direction {
	switch {
	case j.right.Read() == gpio.Low:
		return access.Right
	case j.left.Read() == gpio.Low:
		return access.Left
	default:
		return access.Neutral
	}
}

// Fixed always reports the same direction. It stands in for a joystick on
// boards without one.
type Fixed access.Direction

// Input implements access.Input
func (f Fixed) Input() access.Direction {
	return access.Direction(f)
}
