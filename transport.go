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
	"sync"
)

// Transport defines the interface for the synchronous serial bus the
// MFRC522 sits on.
type Transport interface {
	// Transfer performs one full-duplex exchange. The returned slice always
	// has exactly len(tx) bytes; partial transfers are reported as errors.
	Transfer(tx []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport can issue transfers
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// Resetter is implemented by transports that control the chip's hardware
// reset line. Device.Init pulses it before configuring registers.
type Resetter interface {
	Reset(ctx context.Context) error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents SPI bus transport.
	TransportSPI TransportType = "spi"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides a mock implementation of Transport for testing.
// It records every frame sent and answers from a queue of canned
// responses, falling back to an all-zero reply of the right length.
type MockTransport struct {
	err       error
	sent      [][]byte
	responses [][]byte
	mu        sync.Mutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{connected: true}
}

// Transfer implements Transport interface
func (m *MockTransport) Transfer(tx []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, NewNotInitializedError("Transfer", "mock")
	}
	m.sent = append(m.sent, append([]byte(nil), tx...))
	if m.err != nil {
		return nil, NewTransferFailedError("Transfer", "mock", m.err)
	}

	rx := make([]byte, len(tx))
	if len(m.responses) > 0 {
		copy(rx, m.responses[0])
		m.responses = m.responses[1:]
	}
	return rx, nil
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// QueueResponse appends a canned reply for the next unanswered transfer
func (m *MockTransport) QueueResponse(rx []byte) {
	m.mu.Lock()
	m.responses = append(m.responses, append([]byte(nil), rx...))
	m.mu.Unlock()
}

// SetError makes every subsequent transfer fail with err (nil clears it)
func (m *MockTransport) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Sent returns a copy of every frame written so far
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, f := range m.sent {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Reset clears recorded frames, queued responses and injected errors
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.responses = nil
	m.err = nil
	m.connected = true
	m.mu.Unlock()
}
