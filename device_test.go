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
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortTransport answers every exchange with one byte too few.
type shortTransport struct {
	*MockTransport
}

func (s shortTransport) Transfer(tx []byte) ([]byte, error) {
	return make([]byte, len(tx)-1), nil
}

// resettingTransport counts hardware reset pulses.
type resettingTransport struct {
	simTransport
	err    error
	resets int
}

func (r *resettingTransport) Reset(context.Context) error {
	r.resets++
	return r.err
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("Valid_MockTransport", func(t *testing.T) {
		t.Parallel()
		transport := NewMockTransport()
		device, err := New(transport)
		require.NoError(t, err)
		assert.Equal(t, transport, device.Transport())
		assert.Equal(t, *DefaultDeviceConfig(), device.Config())
		assert.Equal(t, StateIdle, device.State())
	})

	t.Run("Nil_Transport", func(t *testing.T) {
		t.Parallel()
		device, err := New(nil)
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Nil(t, device)
	})

	t.Run("Options", func(t *testing.T) {
		t.Parallel()
		device, err := New(NewMockTransport(),
			WithPollInterval(time.Millisecond),
			WithTransceiveTimeout(time.Second))
		require.NoError(t, err)
		assert.Equal(t, time.Millisecond, device.Config().PollInterval)
		assert.Equal(t, time.Second, device.Config().TransceiveTimeout)
	})

	t.Run("Invalid_Options", func(t *testing.T) {
		t.Parallel()
		for _, opt := range []Option{
			WithPollInterval(0),
			WithTransceiveTimeout(-time.Second),
			WithDeviceConfig(nil),
			WithDeviceConfig(&DeviceConfig{TimerReload: 0x0149, PollInterval: 10 * time.Microsecond}),
			WithDeviceConfig(&DeviceConfig{TimerReload: 0x0149, TransceiveTimeout: 25 * time.Millisecond}),
		} {
			_, err := New(NewMockTransport(), opt)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		}
	})
}

func TestDefaultDeviceConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultDeviceConfig()
	assert.Equal(t, 10*time.Microsecond, cfg.PollInterval)
	assert.Equal(t, 25*time.Millisecond, cfg.TransceiveTimeout)
	assert.Equal(t, byte(0x00), cfg.TimerPrescaler)
	assert.Equal(t, uint16(0x0149), cfg.TimerReload)
}

func TestWithDeviceConfig_Copies(t *testing.T) {
	t.Parallel()

	cfg := DefaultDeviceConfig()
	device, err := New(NewMockTransport(), WithDeviceConfig(cfg))
	require.NoError(t, err)

	cfg.TimerReload = 0xFFFF
	assert.Equal(t, uint16(0x0149), device.Config().TimerReload)
}

func TestDevice_WriteRegister_Frame(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	device, err := New(mock)
	require.NoError(t, err)

	require.NoError(t, device.WriteRegister(TModeReg, 0x84))
	require.NoError(t, device.WriteRegister(CommandReg, CmdTransceive))

	assert.Equal(t, [][]byte{{0x54, 0x84}, {0x02, 0x0C}}, mock.Sent())
}

func TestDevice_ReadRegister_Frame(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueResponse([]byte{0xFF, 0x92})
	device, err := New(mock)
	require.NoError(t, err)

	version, err := device.Version()
	require.NoError(t, err)
	assert.Equal(t, byte(0x92), version)
	assert.Equal(t, [][]byte{{0xEE, 0x00}}, mock.Sent())
}

func TestDevice_Register_InvalidAddress(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	device, err := New(mock)
	require.NoError(t, err)

	err = device.WriteRegister(0x80, 0x00)
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = device.ReadRegister(0xFF)
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Empty(t, mock.Sent(), "invalid addresses must not reach the bus")
}

func TestDevice_Register_TransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("Transfer_Failed", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		mock.SetError(errors.New("spidev ioctl failed"))
		device, err := New(mock)
		require.NoError(t, err)

		_, err = device.ReadRegister(VersionReg)
		require.ErrorIs(t, err, ErrTransferFailed)
		assert.True(t, IsRetryable(err))
		assert.Contains(t, err.Error(), "read register 0x37")
	})

	t.Run("Closed", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		device, err := New(mock)
		require.NoError(t, err)
		require.NoError(t, device.Close())

		err = device.WriteRegister(CommandReg, CmdIdle)
		require.ErrorIs(t, err, ErrNotInitialized)
		assert.True(t, IsFatal(err))
	})

	t.Run("Short_Transfer", func(t *testing.T) {
		t.Parallel()
		device, err := New(shortTransport{NewMockTransport()})
		require.NoError(t, err)

		_, err = device.ReadRegister(VersionReg)
		require.ErrorIs(t, err, ErrTransferFailed)
		assert.Contains(t, err.Error(), "short transfer")
	})
}

func TestDevice_Init_WriteSequence(t *testing.T) {
	t.Parallel()

	device, sim := newSimDevice(t)
	require.NoError(t, device.Init(context.Background()))

	assert.Equal(t, []testutil.RegisterWrite{
		{Reg: TModeReg, Value: 0x84},
		{Reg: TPrescalerReg, Value: 0x00},
		{Reg: TReloadRegH, Value: 0x01},
		{Reg: TReloadRegL, Value: 0x49},
		{Reg: ModeReg, Value: 0x29},
		{Reg: TxASKReg, Value: 0x40},
		{Reg: TxControlReg, Value: 0x83},
	}, sim.Writes())
	assert.Equal(t, byte(0x83), sim.Register(TxControlReg), "antenna bits set, other bits preserved")
}

func TestDevice_Init_CustomTimer(t *testing.T) {
	t.Parallel()

	cfg := DefaultDeviceConfig()
	cfg.TimerPrescaler = 0xA9
	cfg.TimerReload = 0x03E8
	device, sim := newSimDevice(t, WithDeviceConfig(cfg))
	require.NoError(t, device.Init(context.Background()))

	assert.Equal(t, byte(0xA9), sim.Register(TPrescalerReg))
	assert.Equal(t, byte(0x03), sim.Register(TReloadRegH))
	assert.Equal(t, byte(0xE8), sim.Register(TReloadRegL))
}

func TestDevice_Init_PulsesReset(t *testing.T) {
	t.Parallel()

	transport := &resettingTransport{simTransport: simTransport{testutil.NewVirtualMFRC522()}}
	device, err := New(transport)
	require.NoError(t, err)

	require.NoError(t, device.Init(context.Background()))
	assert.Equal(t, 1, transport.resets)

	transport.err = errors.New("gpio busy")
	err = device.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hardware reset")
}

func TestDevice_Init_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	device, sim := newSimDevice(t)
	sim.FailAfter(2)

	err := device.Init(context.Background())
	require.ErrorIs(t, err, testutil.ErrSimulatedTransfer)
	assert.Len(t, sim.Writes(), 2, "Init must not retry or continue after a failed write")
}
