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
	"fmt"
)

// RequestA checks for a tag in the field by sending REQA as a 7-bit short
// frame. StatusOK means at least one tag answered.
func (d *Device) RequestA(ctx context.Context) (Status, error) {
	if err := d.WriteRegister(BitFramingReg, bitFramingTxLast7); err != nil {
		return StatusProtocolError, fmt.Errorf("request A: %w", err)
	}
	_, status, err := d.Transceive(ctx, []byte{PICCReqA}, 0)
	return status, err
}

// ReadUID runs the presence check followed by a cascade level 1
// anti-collision and returns the five response bytes folded most
// significant first: four UID bytes followed by the BCC. Use UIDFromRaw to
// get the 32-bit identifier.
//
// A failed presence check is returned unchanged. A failed or short
// anti-collision response yields StatusProtocolError.
func (d *Device) ReadUID(ctx context.Context) (uint64, Status, error) {
	status, err := d.RequestA(ctx)
	if err != nil || status != StatusOK {
		return 0, status, err
	}

	rx, status, err := d.Transceive(ctx, []byte{PICCSelectCL, anticollNVB}, uidFrameLen)
	if err != nil {
		return 0, status, fmt.Errorf("anti-collision: %w", err)
	}
	if status != StatusOK || len(rx) < uidFrameLen {
		Debugf("anti-collision failed: status=%s bytes=%d", status, len(rx))
		return 0, StatusProtocolError, nil
	}

	var raw uint64
	for _, b := range rx[:uidFrameLen] {
		raw = raw<<8 | uint64(b)
	}
	return raw, StatusOK, nil
}

// UIDFromRaw drops the trailing BCC byte from a ReadUID result.
func UIDFromRaw(raw uint64) uint32 {
	return uint32(raw >> 8)
}

// BCCValid reports whether the BCC byte of a ReadUID result is the XOR of
// the four UID bytes.
func BCCValid(raw uint64) bool {
	uid := UIDFromRaw(raw)
	bcc := byte(uid>>24) ^ byte(uid>>16) ^ byte(uid>>8) ^ byte(uid)
	return bcc == byte(raw)
}
