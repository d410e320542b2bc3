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
	"errors"
	"fmt"
	"time"
)

// Config holds access loop timing and registry sizing
type Config struct {
	// PollInterval is slept after every detection attempt, hit or miss.
	PollInterval time.Duration
	// SettleDelay is how long the door is held open before the first close.
	SettleDelay time.Duration
	// OpenDuration is armed on the countdown display when the door reopens.
	OpenDuration time.Duration
	// CountdownPoll is the sleep between countdown and cancellation checks.
	CountdownPoll time.Duration
	// Capacity bounds the number of enrolled tags.
	Capacity int
}

// DefaultConfig returns the default access loop configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  1 * time.Second,
		SettleDelay:   5 * time.Second,
		OpenDuration:  5 * time.Second,
		CountdownPoll: 10 * time.Millisecond,
		Capacity:      DefaultCapacity,
	}
}

// ErrInvalidConfig is returned for out-of-range configuration values
var ErrInvalidConfig = errors.New("invalid access config")

// Validate checks that every field is usable
func (c *Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.PollInterval < 0, c.SettleDelay < 0, c.OpenDuration < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.CountdownPoll <= 0:
		return fmt.Errorf("%w: countdown poll must be positive", ErrInvalidConfig)
	}
	return nil
}
