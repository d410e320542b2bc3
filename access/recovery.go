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
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// RecoveryConfig decides when the controller re-initializes the reader
type RecoveryConfig struct {
	// SleepThreshold is how far past the poll interval a gap between two
	// cycles may run before the host is assumed to have slept. Zero
	// disables sleep detection.
	SleepThreshold time.Duration
	// ErrorThreshold is the number of consecutive bus errors that trigger
	// recovery. Zero disables it.
	ErrorThreshold int
}

// DefaultRecoveryConfig returns sensible defaults for reader recovery
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		SleepThreshold: 2 * time.Second,
		ErrorThreshold: 3,
	}
}

// DetectSleep reports whether elapsed exceeds pollInterval by more than
// the threshold.
func (cfg RecoveryConfig) DetectSleep(elapsed, pollInterval time.Duration) bool {
	if cfg.SleepThreshold <= 0 {
		return false
	}
	return elapsed > pollInterval+cfg.SleepThreshold
}

// Recoverer brings the reader back into a known state
type Recoverer interface {
	Recover(ctx context.Context) error
}

// Initializer configures the reader chip. *mfrc522.Device satisfies it.
type Initializer interface {
	Init(ctx context.Context) error
}

// InitRecoverer recovers by re-running the chip init sequence (which also
// pulses the reset line when there is one), retrying with a fixed backoff.
type InitRecoverer struct {
	device      Initializer
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewInitRecoverer creates a recoverer. Non-positive values select three
// attempts 500ms apart.
func NewInitRecoverer(device Initializer, backoff time.Duration, maxAttempts int) *InitRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &InitRecoverer{device: device, backoff: backoff, maxAttempts: maxAttempts}
}

// Recover runs Init until it succeeds or the attempts run out, returning
// the last error.
func (r *InitRecoverer) Recover(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}
		if lastErr = r.device.Init(ctx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
