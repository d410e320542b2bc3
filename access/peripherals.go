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

package access

import (
	"context"

	"github.com/ZaparooProject/go-mfrc522"
)

// UIDReader resolves the UID of a tag in the reader's field.
// *mfrc522.Device satisfies it.
type UIDReader interface {
	ReadUID(ctx context.Context) (uint64, mfrc522.Status, error)
}

// Position is a door actuator position
type Position int

const (
	Closed Position = iota
	Open
)

func (p Position) String() string {
	if p == Open {
		return "open"
	}
	return "closed"
}

// Actuator drives the door strike
type Actuator interface {
	SetPosition(p Position) error
	Position() Position
}

// Countdown is the open-time display. Values are milliseconds.
type Countdown interface {
	Update(ms int)
	Value() int
}

// Direction is a reading of the operator's input
type Direction int

const (
	Neutral Direction = iota
	// Left grants permission to the tag being enrolled.
	Left
	// Right requests that the access loop stop.
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "neutral"
	}
}

// Input reads the operator's current selection
type Input interface {
	Input() Direction
}

// EventLog accepts access event lines without blocking the caller
type EventLog interface {
	Enqueue(msg string)
}

// Peripherals groups the collaborators the controller drives
type Peripherals struct {
	Door      Actuator
	Countdown Countdown
	Input     Input
	// Log may be nil, in which case events are only sent to the debug log.
	Log EventLog
}
