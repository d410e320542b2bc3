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
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	testutil "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readResult struct {
	err    error
	raw    uint64
	status mfrc522.Status
}

// scriptedReader returns results in order, then an empty field forever.
type scriptedReader struct {
	results []readResult
	calls   atomic.Int64
	mu      sync.Mutex
}

func (r *scriptedReader) ReadUID(context.Context) (uint64, mfrc522.Status, error) {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return 0, mfrc522.StatusProtocolError, nil
	}
	res := r.results[0]
	r.results = r.results[1:]
	return res.raw, res.status, res.err
}

// repeatingReader reports the same tag on every read.
type repeatingReader struct {
	calls atomic.Int64
	raw   uint64
}

func (r *repeatingReader) ReadUID(context.Context) (uint64, mfrc522.Status, error) {
	r.calls.Add(1)
	return r.raw, mfrc522.StatusOK, nil
}

type fakeDoor struct {
	moves []Position
	mu    sync.Mutex
	pos   Position
}

func (d *fakeDoor) SetPosition(p Position) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moves = append(d.moves, p)
	d.pos = p
	return nil
}

func (d *fakeDoor) Position() Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

func (d *fakeDoor) Moves() []Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Position(nil), d.moves...)
}

// tickingCountdown loses step milliseconds every time it is read.
type tickingCountdown struct {
	armed     []int
	mu        sync.Mutex
	remaining int
	step      int
}

func (c *tickingCountdown) Update(ms int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = append(c.armed, ms)
	c.remaining = ms
}

func (c *tickingCountdown) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step <= 0 {
		return 0
	}
	v := c.remaining
	c.remaining = max(0, c.remaining-c.step)
	return v
}

// queuedInput answers from a queue, then repeats fallback.
type queuedInput struct {
	queue    []Direction
	mu       sync.Mutex
	fallback Direction
}

func (in *queuedInput) Input() Direction {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.queue) == 0 {
		return in.fallback
	}
	d := in.queue[0]
	in.queue = in.queue[1:]
	return d
}

type memoryLog struct {
	lines []string
	mu    sync.Mutex
}

func (l *memoryLog) Enqueue(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *memoryLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func fastConfig() *Config {
	return &Config{
		PollInterval:  time.Millisecond,
		SettleDelay:   0,
		OpenDuration:  5 * time.Second,
		CountdownPoll: 100 * time.Microsecond,
		Capacity:      DefaultCapacity,
	}
}

// rawFor builds a ReadUID result for uid with a correct BCC.
func rawFor(uid uint32) uint64 {
	bcc := byte(uid>>24) ^ byte(uid>>16) ^ byte(uid>>8) ^ byte(uid)
	return uint64(uid)<<8 | uint64(bcc)
}

func stopController(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestNewController_Validation(t *testing.T) {
	t.Parallel()

	p := Peripherals{Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{}}

	_, err := NewController(nil, p, nil)
	require.Error(t, err)

	_, err = NewController(&scriptedReader{}, Peripherals{}, nil)
	require.Error(t, err)

	_, err = NewController(&scriptedReader{}, p, &Config{Capacity: 0, CountdownPoll: time.Millisecond})
	require.ErrorIs(t, err, ErrInvalidConfig)

	c, err := NewController(&scriptedReader{}, p, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, c.Registry().Capacity())
}

func TestController_GrantThenDenyUpdatesInPlace(t *testing.T) {
	t.Parallel()

	reader := &scriptedReader{results: []readResult{
		{raw: rawFor(0x1234ABCD), status: mfrc522.StatusOK},
		{raw: rawFor(0x1234ABCD), status: mfrc522.StatusOK},
	}}
	door := &fakeDoor{}
	input := &queuedInput{queue: []Direction{Left, Neutral}}
	events := &memoryLog{}

	c, err := NewController(reader, Peripherals{
		Door:      door,
		Countdown: &tickingCountdown{}, // already expired
		Input:     input,
		Log:       events,
	}, fastConfig())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.calls.Load() >= 3 },
		2*time.Second, time.Millisecond)
	stopController(t, c)

	tags := c.Tags()
	require.Len(t, tags, 1)
	assert.Equal(t, uint32(0x1234ABCD), tags[0].UID)
	assert.False(t, tags[0].Allowed)
	assert.Equal(t, 1, c.TagCount())

	assert.Equal(t, []Position{Open, Closed, Open, Closed}, door.Moves(), "exactly one door sequence")
	assert.Equal(t, int64(1), c.GetMetrics().DoorsOpened)
	assert.Equal(t, int64(2), c.GetMetrics().TagsDetected)

	lines := events.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[NEW TAG] UID 0x1234ABCD (allowed=true)")
	assert.Contains(t, lines[1], "[KNOWN TAG] UID 0x1234ABCD (allowed=false)")
}

func TestController_DoorAlreadyOpenSkipsCountdown(t *testing.T) {
	t.Parallel()

	reader := &scriptedReader{results: []readResult{{raw: rawFor(0xCAFEF00D), status: mfrc522.StatusOK}}}
	door := &fakeDoor{pos: Open}
	countdown := &tickingCountdown{step: 1000}

	c, err := NewController(reader, Peripherals{
		Door: door, Countdown: countdown, Input: &queuedInput{fallback: Left},
	}, fastConfig())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.calls.Load() >= 2 },
		2*time.Second, time.Millisecond)
	stopController(t, c)

	assert.Equal(t, []Position{Open, Closed}, door.Moves())
	assert.Empty(t, countdown.armed)
}

func TestController_CountdownRunsOutThenCloses(t *testing.T) {
	t.Parallel()

	reader := &scriptedReader{results: []readResult{{raw: rawFor(0x01020304), status: mfrc522.StatusOK}}}
	door := &fakeDoor{}
	countdown := &tickingCountdown{step: 1000}

	c, err := NewController(reader, Peripherals{
		Door: door, Countdown: countdown, Input: &queuedInput{queue: []Direction{Left}},
	}, fastConfig())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.calls.Load() >= 2 },
		2*time.Second, time.Millisecond)
	stopController(t, c)

	assert.Equal(t, []Position{Open, Closed, Open, Closed}, door.Moves())
	assert.Equal(t, []int{5000}, countdown.armed)
	assert.Equal(t, int64(1), c.GetMetrics().DoorsOpened)
}

func TestController_CancelDuringCountdownStopsLoop(t *testing.T) {
	t.Parallel()

	reader := &repeatingReader{raw: rawFor(0x1234ABCD)}
	door := &fakeDoor{}
	// Left grants at enrollment, Right arrives on the first countdown check.
	input := &queuedInput{queue: []Direction{Left, Right}, fallback: Left}

	c, err := NewController(reader, Peripherals{
		Door: door, Countdown: &tickingCountdown{step: 1}, Input: input,
	}, fastConfig())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("access loop did not stop after cancellation")
	}

	assert.True(t, c.Cancelled())
	assert.Equal(t, int64(1), reader.calls.Load(), "no tag reads after cancellation")
	assert.Equal(t, []Position{Open, Closed, Open, Closed}, door.Moves(), "door closed after cancel")
}

func TestController_BusErrorsDoNotStopLoop(t *testing.T) {
	t.Parallel()

	busErr := mfrc522.NewTransferFailedError("Transfer", "spi", errors.New("glitch"))
	reader := &scriptedReader{results: []readResult{
		{err: busErr, status: mfrc522.StatusProtocolError},
		{status: mfrc522.StatusTimeout},
		{err: busErr, status: mfrc522.StatusProtocolError},
		{raw: rawFor(0x0A0B0C0D), status: mfrc522.StatusOK},
	}}

	c, err := NewController(reader, Peripherals{
		Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{},
	}, fastConfig())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.TagCount() == 1 }, 2*time.Second, time.Millisecond)
	stopController(t, c)

	m := c.GetMetrics()
	assert.Equal(t, int64(2), m.PollErrors)
	assert.GreaterOrEqual(t, m.PollCycles, int64(4))
	assert.Zero(t, m.DoorsOpened, "denied tags never open the door")
}

func TestController_RegistryFullDropsNewTag(t *testing.T) {
	t.Parallel()

	reader := &scriptedReader{results: []readResult{
		{raw: rawFor(0x11111111), status: mfrc522.StatusOK},
		{raw: rawFor(0x22222222), status: mfrc522.StatusOK},
	}}
	events := &memoryLog{}
	cfg := fastConfig()
	cfg.Capacity = 1

	c, err := NewController(reader, Peripherals{
		Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{}, Log: events,
	}, cfg)
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	stopController(t, c)

	assert.Equal(t, []uint32{0x11111111}, uids(c.Tags()))
	lines := events.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "[REGISTRY FULL] UID 0x22222222")
}

func TestController_RemoveTag(t *testing.T) {
	t.Parallel()

	events := &memoryLog{}
	registry := NewRegistry(8)
	_, err := registry.InsertOrUpdate(0x1234ABCD, true)
	require.NoError(t, err)

	c, err := NewController(&scriptedReader{}, Peripherals{
		Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{}, Log: events,
	}, nil, WithRegistry(registry))
	require.NoError(t, err)

	require.NoError(t, c.RemoveTag(0x1234ABCD))
	_, ok := c.Tag(0x1234ABCD)
	assert.False(t, ok)
	require.ErrorIs(t, c.RemoveTag(0x1234ABCD), ErrTagNotFound)

	lines := events.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "[TAG REMOVED] UID 0x1234ABCD (allowed=true)"))
}

func TestController_CleanupDoesNotBlock(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.PollInterval = time.Hour

	c, err := NewController(&scriptedReader{}, Peripherals{
		Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{},
	}, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()), "second Start is a no-op")

	c.Cleanup()
	c.Cleanup()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Cleanup did not wake the poll-interval sleep")
	}
}

func TestController_CleanupDuringSettleLeavesDoorClosed(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.SettleDelay = time.Hour
	door := &fakeDoor{}
	countdown := &tickingCountdown{step: 1}

	c, err := NewController(&repeatingReader{raw: rawFor(0x11223344)}, Peripherals{
		Door: door, Countdown: countdown, Input: &queuedInput{fallback: Left},
	}, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return len(door.Moves()) == 1 }, 2*time.Second, time.Millisecond)
	stopController(t, c)

	assert.Equal(t, []Position{Open, Closed}, door.Moves(), "no reopen once cleanup is requested")
	countdown.mu.Lock()
	defer countdown.mu.Unlock()
	assert.Empty(t, countdown.armed)
}

func TestController_StopBeforeStart(t *testing.T) {
	t.Parallel()

	reader := &scriptedReader{}
	c, err := NewController(reader, Peripherals{
		Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Stop(context.Background()))
	assert.True(t, c.Cancelled())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed for a controller that was not started")
	}

	// A late Start must not close Done again or poll the reader.
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.Zero(t, reader.calls.Load())
}

func TestController_ContextCancelStopsLoop(t *testing.T) {
	t.Parallel()

	c, err := NewController(&scriptedReader{}, Peripherals{
		Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{},
	}, fastConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop ignored context cancellation")
	}
}

// simReader adapts the simulator to mfrc522.Transport.
type simReader struct {
	*testutil.VirtualMFRC522
}

func (simReader) Type() mfrc522.TransportType {
	return mfrc522.TransportMock
}

func TestController_WithSimulatedReader(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualMFRC522()
	require.NoError(t, sim.PlaceTag([]byte{0x12, 0x34, 0xAB, 0xCD}))
	device, err := mfrc522.New(simReader{sim}, mfrc522.WithPollInterval(time.Microsecond))
	require.NoError(t, err)
	require.NoError(t, device.Init(context.Background()))

	c, err := NewController(device, Peripherals{
		Door: &fakeDoor{}, Countdown: &tickingCountdown{}, Input: &queuedInput{fallback: Left},
	}, fastConfig())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.TagCount() == 1 }, 2*time.Second, time.Millisecond)
	stopController(t, c)

	tag, ok := c.Tag(0x1234ABCD)
	require.True(t, ok)
	assert.True(t, tag.Allowed)
	assert.Positive(t, c.GetMetrics().DoorsOpened)
}

func TestFormatEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 4, 9, 8, 7, 0, time.UTC)
	assert.Equal(t, "2026-05-04 09:08:07 [NEW TAG] UID 0x00ABCDEF (allowed=false)",
		FormatEvent(at, EventNewTag, 0xABCDEF, false))
}
