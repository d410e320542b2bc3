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
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/require"
)

// simTransport adapts the register-level simulator to Transport.
type simTransport struct {
	*testutil.VirtualMFRC522
}

func (simTransport) Type() TransportType {
	return TransportMock
}

// newSimDevice creates a device backed by a fresh simulator with an empty field.
func newSimDevice(t *testing.T, opts ...Option) (*Device, *testutil.VirtualMFRC522) {
	t.Helper()
	sim := testutil.NewVirtualMFRC522()
	device, err := New(simTransport{sim}, opts...)
	require.NoError(t, err)
	return device, sim
}

// newSimDeviceWithTag creates a simulator-backed device with a tag in the field.
func newSimDeviceWithTag(t *testing.T, uid ...byte) (*Device, *testutil.VirtualMFRC522) {
	t.Helper()
	device, sim := newSimDevice(t, WithPollInterval(time.Microsecond))
	require.NoError(t, sim.PlaceTag(uid))
	return device, sim
}
