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

package testing

import (
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// Bus is the full-duplex exchange a JitteryBus wraps
type Bus interface {
	Transfer(tx []byte) ([]byte, error)
}

// JitterConfig configures the behavior of JitteryBus.
type JitterConfig struct {
	MaxLatency time.Duration
	// FailEvery makes roughly one transfer in FailEvery fail. Zero never fails.
	FailEvery int
	Seed      uint64
}

// DefaultJitterConfig returns latencies in the range of a loaded
// single-board computer, well below the transceive timeout.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatency: 200 * time.Microsecond,
	}
}

// JitteryBus delays each transfer by a random amount and optionally fails
// some of them before they reach the backend, so the chip state is never
// touched by a failed exchange.
type JitteryBus struct {
	backend  Bus
	rng      *rand.Rand
	config   JitterConfig
	failures int
	mu       syncutil.Mutex
}

// NewJitteryBus wraps backend with jitter simulation.
func NewJitteryBus(backend Bus, config JitterConfig) *JitteryBus {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // Test code, not crypto
	}
	return &JitteryBus{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)), //nolint:gosec // Test code, not crypto
	}
}

// Transfer sleeps for a random latency, then either fails or forwards tx.
func (j *JitteryBus) Transfer(tx []byte) ([]byte, error) {
	j.mu.Lock()
	var delay time.Duration
	if j.config.MaxLatency > 0 {
		delay = time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1))
	}
	fail := j.config.FailEvery > 0 && j.rng.IntN(j.config.FailEvery) == 0
	if fail {
		j.failures++
	}
	j.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, ErrSimulatedTransfer
	}
	return j.backend.Transfer(tx) //nolint:wrapcheck // Pass-through wrapper
}

// Failures returns how many transfers were failed on purpose
func (j *JitteryBus) Failures() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failures
}
