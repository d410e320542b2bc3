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
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// Countdown is a software countdown timer in milliseconds. It runs down on
// its own once armed; Value reports what is left.
type Countdown struct {
	now      func() time.Time
	deadline time.Time
	mu       syncutil.Mutex
}

// NewCountdown creates an expired countdown. A nil now means time.Now.
func NewCountdown(now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{now: now}
}

// Update arms the countdown with ms milliseconds
func (c *Countdown) Update(ms int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = c.now().Add(time.Duration(ms) * time.Millisecond)
}

// Value returns the milliseconds remaining, never negative
func (c *Countdown) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.deadline.Sub(c.now())
	if remaining <= 0 {
		return 0
	}
	// Round up so a countdown with time left never reads zero.
	return int((remaining + time.Millisecond - 1) / time.Millisecond)
}
