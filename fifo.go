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

import "fmt"

// FIFOSize is the depth of the chip's internal FIFO buffer.
const FIFOSize = 64

// WriteFIFO loads data into the FIFO with a single burst transfer: the
// FIFODataReg write address followed by the payload.
func (d *Device) WriteFIFO(data []byte) error {
	if len(data) > FIFOSize {
		return fmt.Errorf("%w: %d bytes exceeds FIFO size", ErrDataTooLarge, len(data))
	}

	tx := make([]byte, len(data)+1)
	tx[0] = regWriteOp | FIFODataReg<<regAddrBit
	copy(tx[1:], data)

	if _, err := d.transfer("write FIFO", tx); err != nil {
		return err
	}
	return nil
}

// ReadFIFO drains n bytes from the FIFO with a single burst transfer. Each
// address byte clocks out the value for the previous one, so the response
// is shifted by one and the first byte is discarded.
func (d *Device) ReadFIFO(n int) ([]byte, error) {
	if n < 0 || n > FIFOSize {
		return nil, fmt.Errorf("%w: cannot read %d bytes from FIFO", ErrInvalidParameter, n)
	}
	if n == 0 {
		return []byte{}, nil
	}

	tx := make([]byte, n+1)
	for i := range n {
		tx[i] = regReadOp | FIFODataReg<<regAddrBit
	}
	tx[n] = readStop

	rx, err := d.transfer("read FIFO", tx)
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, rx[1:])
	return out, nil
}
