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
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories for bus and chip failures
var (
	// Transport errors
	ErrDeviceUnavailable = errors.New("bus device unavailable")
	ErrTransferFailed    = errors.New("bus transfer failed")
	ErrNotInitialized    = errors.New("bus transport not initialized")
	ErrTransportClosed   = errors.New("transport is closed")

	// Chip errors - expected and frequent, never fatal
	ErrProtocol = errors.New("chip protocol error")
	ErrTimeout  = errors.New("chip did not respond in time")

	// Data errors - not retryable
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDataTooLarge     = errors.New("data too large")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Bus device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable.
// A failed transfer only aborts the current poll cycle, so the next
// cycle is effectively the retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransferFailed),
		errors.Is(err, ErrProtocol),
		errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the bus is gone and no
// further exchange can succeed without reopening it.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceUnavailable),
		errors.Is(err, ErrNotInitialized),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating the spidev node
// disappeared underneath us.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewDeviceUnavailableError reports a bus device that could not be opened or configured
func NewDeviceUnavailableError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrDeviceUnavailable, cause), ErrorTypePermanent)
}

// NewTransferFailedError creates a transfer error. It is transient unless
// cause says the device node is gone (EIO, ENXIO, ENODEV), which is permanent.
func NewTransferFailedError(op, port string, cause error) *TransportError {
	if cause == nil {
		return NewTransportError(op, port, ErrTransferFailed, ErrorTypeTransient)
	}
	if isDeviceGoneError(cause) {
		return NewTransportError(op, port,
			fmt.Errorf("%w: %w: %w", ErrTransferFailed, ErrDeviceUnavailable, cause), ErrorTypePermanent)
	}
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransferFailed, cause), ErrorTypeTransient)
}

// NewNotInitializedError is returned by transfers against a degraded or unopened bus
func NewNotInitializedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNotInitialized, ErrorTypePermanent)
}
