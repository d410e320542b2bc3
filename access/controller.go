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

// Package access implements tag enrollment and the door access loop that
// sits on top of an MFRC522 reader.
package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
)

// Event kinds written to the event log
const (
	EventNewTag       = "NEW TAG"
	EventKnownTag     = "KNOWN TAG"
	EventTagRemoved   = "TAG REMOVED"
	EventRegistryFull = "REGISTRY FULL"
)

// FormatEvent renders one event log line, e.g.
// "2026-01-02 15:04:05 [NEW TAG] UID 0x1234ABCD (allowed=true)".
func FormatEvent(at time.Time, kind string, uid uint32, allowed bool) string {
	return fmt.Sprintf("%s [%s] UID 0x%08X (allowed=%t)", at.Format(time.DateTime), kind, uid, allowed)
}

// ControllerMetrics tracks operational metrics for the Controller
type ControllerMetrics struct {
	PollCycles      int64         // Detection attempts
	PollErrors      int64         // Attempts that failed on the bus
	TagsDetected    int64         // Attempts that resolved a UID
	DoorsOpened     int64         // Door sequences run
	Recoveries      int64         // Reader re-initializations attempted
	LastPollLatency time.Duration // Duration of the last detection attempt
}

// errCancelRequested stops the countdown wait when the operator asks to quit.
var errCancelRequested = errors.New("cancel requested")

// Controller runs the access loop on its own goroutine: detect a tag, enroll
// or update it with the operator's permission, and run the door sequence for
// permitted tags. Door sequences run on the same goroutine, so no detection
// happens while the door is moving.
//
// The registry may be read from any goroutine. The reader and the
// peripherals belong to the loop once Start has been called.
type Controller struct {
	reader    UIDReader
	registry  *Registry
	config    *Config
	recoverer Recoverer
	p         Peripherals
	done      chan struct{}
	stop      chan struct{}
	// Loop-owned recovery state
	lastCycle         time.Time
	recovery          RecoveryConfig
	consecutiveErrors int
	stopOnce          sync.Once
	doneOnce          sync.Once
	// Atomic counters for metrics
	pollCycles      atomic.Int64
	pollErrors      atomic.Int64
	tagsDetected    atomic.Int64
	doorsOpened     atomic.Int64
	recoveries      atomic.Int64
	lastPollLatency atomic.Int64 // in nanoseconds
	cancelled       atomic.Bool
	running         atomic.Bool
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithRegistry uses an existing registry instead of an empty one sized
// from the config.
func WithRegistry(r *Registry) ControllerOption {
	return func(c *Controller) {
		c.registry = r
	}
}

// WithRecovery re-initializes the reader through r after a host sleep or a
// run of bus errors, as decided by cfg.
func WithRecovery(r Recoverer, cfg RecoveryConfig) ControllerOption {
	return func(c *Controller) {
		c.recoverer = r
		c.recovery = cfg
	}
}

// NewController creates a stopped controller. A nil config means DefaultConfig.
func NewController(
	reader UIDReader, p Peripherals, config *Config, opts ...ControllerOption,
) (*Controller, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if reader == nil || p.Door == nil || p.Countdown == nil || p.Input == nil {
		return nil, errors.New("access controller needs a reader, a door, a countdown and an input")
	}

	c := &Controller{
		reader: reader,
		config: config,
		p:      p,
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry(config.Capacity)
	}
	return c, nil
}

// Start launches the access loop. It returns immediately; the loop runs
// until Cleanup or Stop is called, the operator cancels from the countdown,
// or ctx is done. Calling Start again has no effect.
func (c *Controller) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return nil
	}
	go c.run(ctx)
	return nil
}

// Cleanup sets the cancellation flag and returns without waiting. The loop
// observes it before the next detection or inside the countdown wait.
func (c *Controller) Cleanup() {
	c.cancelled.Store(true)
	c.stopOnce.Do(func() { close(c.stop) })
	if !c.running.Load() {
		// No loop will ever close done.
		c.closeDone()
	}
	mfrc522.Debugln("access: cleanup requested")
}

func (c *Controller) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Stop requests cancellation and waits for the loop to exit or ctx to end
func (c *Controller) Stop(ctx context.Context) error {
	c.Cleanup()
	if !c.running.Load() {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for access loop: %w", ctx.Err())
	}
}

// Done is closed when the loop has exited, or by Cleanup/Stop if the loop
// was never started.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Cancelled reports whether cancellation has been requested
func (c *Controller) Cancelled() bool {
	return c.cancelled.Load()
}

func (c *Controller) shouldStop(ctx context.Context) bool {
	return c.cancelled.Load() || ctx.Err() != nil
}

func (c *Controller) run(ctx context.Context) {
	defer c.closeDone()
	mfrc522.Debugf("access: loop started (poll every %s)", c.config.PollInterval)

	for !c.shouldStop(ctx) {
		c.maybeRecover(ctx)
		c.pollOnce(ctx)
		if c.shouldStop(ctx) {
			break
		}
		c.lastCycle = time.Now()
		c.sleep(ctx, c.config.PollInterval)
	}
	mfrc522.Debugln("access: loop stopped")
}

// maybeRecover re-initializes the reader when the gap since the last cycle
// points at a host sleep or too many bus errors happened in a row. A failed
// recovery is logged and polling carries on.
func (c *Controller) maybeRecover(ctx context.Context) {
	if c.recoverer == nil {
		return
	}

	var reason string
	switch {
	case !c.lastCycle.IsZero() && c.recovery.DetectSleep(time.Since(c.lastCycle), c.config.PollInterval):
		reason = "host sleep detected"
	case c.recovery.ErrorThreshold > 0 && c.consecutiveErrors >= c.recovery.ErrorThreshold:
		reason = fmt.Sprintf("%d consecutive bus errors", c.consecutiveErrors)
	default:
		return
	}

	c.recoveries.Add(1)
	c.consecutiveErrors = 0
	if err := c.recoverer.Recover(ctx); err != nil {
		mfrc522.Debugf("access: recovery after %s failed: %v", reason, err)
		return
	}
	mfrc522.Debugf("access: reader recovered after %s", reason)
}

// sleep waits d, returning early on cancellation.
func (c *Controller) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.stop:
	case <-ctx.Done():
	}
}

// pollOnce runs a single detection cycle. Every failure is logged and ends
// the cycle; none of them stop the loop.
func (c *Controller) pollOnce(ctx context.Context) {
	start := time.Now()
	raw, status, err := c.reader.ReadUID(ctx)
	c.pollCycles.Add(1)
	c.lastPollLatency.Store(time.Since(start).Nanoseconds())

	if err != nil {
		c.pollErrors.Add(1)
		if mfrc522.IsFatal(err) {
			// Re-running Init over a bus that is gone cannot succeed.
			mfrc522.Debugf("access: bus unavailable: %v", err)
			return
		}
		c.consecutiveErrors++
		mfrc522.Debugf("access: read UID failed: %v", err)
		return
	}
	c.consecutiveErrors = 0
	if status != mfrc522.StatusOK || raw == 0 {
		return
	}

	uid := mfrc522.UIDFromRaw(raw)
	if !mfrc522.BCCValid(raw) {
		mfrc522.Debugf("access: UID 0x%08X has a bad BCC (raw 0x%010X), accepting anyway", uid, raw)
	}
	c.tagsDetected.Add(1)

	allowed := c.p.Input.Input() == Left
	created, err := c.registry.InsertOrUpdate(uid, allowed)
	if err != nil {
		c.logEvent(FormatEvent(time.Now(), EventRegistryFull, uid, allowed))
		mfrc522.Debugf("access: %v", err)
		return
	}

	tag, ok := c.registry.Lookup(uid)
	if !ok {
		// Removed between the update and the lookup.
		return
	}
	kind := EventKnownTag
	if created {
		kind = EventNewTag
	}
	c.logEvent(FormatEvent(tag.LastSeen, kind, tag.UID, tag.Allowed))

	if tag.Allowed {
		c.runDoorSequence(ctx)
	}
}

// runDoorSequence opens the door, lets it settle, and closes it. If the door
// was closed when the sequence began it is then reopened for the countdown
// and closed again when the countdown runs out or the operator cancels.
func (c *Controller) runDoorSequence(ctx context.Context) {
	c.doorsOpened.Add(1)
	wasClosed := c.p.Door.Position() == Closed

	c.setDoor(Open)
	c.sleep(ctx, c.config.SettleDelay)
	c.setDoor(Closed)

	if !wasClosed || c.shouldStop(ctx) {
		return
	}

	c.setDoor(Open)
	c.p.Countdown.Update(int(c.config.OpenDuration.Milliseconds()))

	poller := mfrc522.Poller{Interval: c.config.CountdownPoll}
	err := poller.Poll(ctx, func() (bool, error) {
		if c.p.Countdown.Value() <= 0 {
			return true, nil
		}
		if c.p.Input.Input() == Right {
			c.cancelled.Store(true)
			return false, errCancelRequested
		}
		if c.cancelled.Load() {
			return false, errCancelRequested
		}
		return false, nil
	})
	if err != nil {
		mfrc522.Debugf("access: countdown interrupted: %v", err)
	}

	c.setDoor(Closed)
}

func (c *Controller) setDoor(p Position) {
	if err := c.p.Door.SetPosition(p); err != nil {
		mfrc522.Debugf("access: door %s failed: %v", p, err)
	}
}

func (c *Controller) logEvent(line string) {
	mfrc522.Debugln(line)
	if c.p.Log != nil {
		c.p.Log.Enqueue(line)
	}
}

// Registry returns the controller's tag registry
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Tags returns a snapshot of every enrolled tag in enrollment order
func (c *Controller) Tags() []Tag {
	return c.registry.List()
}

// TagCount returns the number of enrolled tags
func (c *Controller) TagCount() int {
	return c.registry.Len()
}

// Tag looks up one enrolled tag
func (c *Controller) Tag(uid uint32) (Tag, bool) {
	return c.registry.Lookup(uid)
}

// RemoveTag unenrolls uid and logs the removal. Unknown UIDs are reported
// with ErrTagNotFound.
func (c *Controller) RemoveTag(uid uint32) error {
	tag, err := c.registry.Remove(uid)
	if err != nil {
		mfrc522.Debugf("access: %v", err)
		return err
	}
	c.logEvent(FormatEvent(time.Now(), EventTagRemoved, tag.UID, tag.Allowed))
	return nil
}

// GetMetrics returns current operational metrics
func (c *Controller) GetMetrics() ControllerMetrics {
	return ControllerMetrics{
		PollCycles:      c.pollCycles.Load(),
		PollErrors:      c.pollErrors.Load(),
		TagsDetected:    c.tagsDetected.Load(),
		DoorsOpened:     c.doorsOpened.Load(),
		Recoveries:      c.recoveries.Load(),
		LastPollLatency: time.Duration(c.lastPollLatency.Load()),
	}
}
