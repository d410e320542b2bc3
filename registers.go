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

// MFRC522 register addresses (datasheet section 9.2). Addresses are
// 6 bits wide on the chip; the SPI address byte carries them in bits 6..1.
const (
	CommandReg    byte = 0x01
	ComIrqReg     byte = 0x04
	FIFODataReg   byte = 0x09
	FIFOLevelReg  byte = 0x0A
	BitFramingReg byte = 0x0D
	ModeReg       byte = 0x11
	TxControlReg  byte = 0x14
	TxASKReg      byte = 0x15
	TModeReg      byte = 0x2A
	TPrescalerReg byte = 0x2B
	TReloadRegH   byte = 0x2C
	TReloadRegL   byte = 0x2D
	VersionReg    byte = 0x37
)

// maxRegisterAddr is the highest address encodable in the SPI address byte.
const maxRegisterAddr = 0x7F

// SPI address byte layout (datasheet 8.1.2.3)
const (
	regReadOp  byte = 0x80
	regWriteOp byte = 0x00
	regAddrBit      = 1
	readStop   byte = 0x00
)

// Chip commands written to CommandReg
const (
	CmdIdle       byte = 0x00
	CmdTransceive byte = 0x0C
)

// ComIrqReg bits
const (
	irqTimer byte = 0x01
	irqIdle  byte = 0x10
	irqRx    byte = 0x20

	// clearAllIRQs clears every request bit (Set1 = 0 with all flags marked).
	clearAllIRQs byte = 0x7F
)

// Bit positions and masks for the registers touched during init and transceive
const (
	fifoFlushBuffer byte = 0x80 // FIFOLevelReg FlushBuffer
	fifoLevelMask   byte = 0x7F

	bitFramingStartSend byte = 0x80 // BitFramingReg StartSend
	bitFramingTxLast7   byte = 0x07 // TxLastBits = 7 for short frames

	tModeTAuto        byte = 0x80
	tModePrescalerHi  byte = 0x04
	modeTxWaitRF      byte = 0x20
	modePolMFin       byte = 0x08
	modeCRCPreset6363 byte = 0x01
	txASKForce100     byte = 0x40
	txControlAntenna  byte = 0x03 // Tx1RFEn | Tx2RFEn
)

// PICC (ISO 14443A) commands
const (
	PICCReqA     byte = 0x26
	PICCSelectCL byte = 0x93

	// anticollNVB announces two valid bytes (SEL + NVB) and no UID bits yet.
	anticollNVB byte = 2 << 4
)

// uidFrameLen is the anti-collision response length: 4 UID bytes and the BCC.
const uidFrameLen = 5
