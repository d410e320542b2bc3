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

package detection

import (
	"slices"
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// probeCache remembers Detect results per scan glob, so repeated lookups
// (e.g. a restart loop) do not reopen every spidev node.
type probeCache struct {
	stored map[string]probeResult
	mu     syncutil.RWMutex
}

type probeResult struct {
	at      time.Time
	devices []DeviceInfo
}

var results = &probeCache{stored: map[string]probeResult{}}

func (c *probeCache) get(glob string, ttl time.Duration) ([]DeviceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.stored[glob]
	if !ok || time.Since(r.at) > ttl {
		return nil, false
	}
	return slices.Clone(r.devices), true
}

func (c *probeCache) put(glob string, devices []DeviceInfo) {
	c.mu.Lock()
	c.stored[glob] = probeResult{at: time.Now(), devices: slices.Clone(devices)}
	c.mu.Unlock()
}

func (c *probeCache) forget(glob string) {
	c.mu.Lock()
	delete(c.stored, glob)
	c.mu.Unlock()
}

// ClearDetectionCache drops every cached result.
func ClearDetectionCache() {
	results.mu.Lock()
	clear(results.stored)
	results.mu.Unlock()
}
