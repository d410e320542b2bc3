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
	"time"
)

// ErrDeadlineExceeded is returned by Poller.Poll when the condition did not
// hold before the timeout elapsed.
var ErrDeadlineExceeded = errors.New("poll deadline exceeded")

// Poller repeatedly evaluates a condition with a fixed sleep between
// evaluations, bounded by an optional wall-clock deadline. It is the one
// place the package waits on hardware state.
type Poller struct {
	// Interval is slept before every evaluation.
	Interval time.Duration
	// Timeout bounds the total wait; zero waits until the condition holds
	// or ctx is cancelled.
	Timeout time.Duration
}

// CheckFunc reports whether polling can stop. A non-nil error stops polling
// immediately and is returned from Poll unchanged.
type CheckFunc func() (done bool, err error)

// Poll sleeps Interval, evaluates check, and repeats until check reports
// done, check fails, the deadline passes, or ctx is cancelled.
func (p Poller) Poll(ctx context.Context, check CheckFunc) error {
	start := time.Now()
	for {
		time.Sleep(p.Interval)
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if p.Timeout > 0 && time.Since(start) >= p.Timeout {
			return ErrDeadlineExceeded
		}
	}
}
