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

package peripheral

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// DefaultLogQueue is the event log queue depth
const DefaultLogQueue = 64

// EventLog writes event lines to an io.Writer from its own goroutine so
// that Enqueue never blocks the access loop. Lines that arrive while the
// queue is full are dropped and counted.
type EventLog struct {
	w       io.Writer
	queue   chan string
	wg      sync.WaitGroup
	dropped atomic.Int64
	mu      syncutil.Mutex
	closed  bool
}

// NewEventLog starts the writer goroutine. A non-positive depth means
// DefaultLogQueue.
func NewEventLog(w io.Writer, depth int) *EventLog {
	if depth <= 0 {
		depth = DefaultLogQueue
	}
	l := &EventLog{w: w, queue: make(chan string, depth)}
	l.wg.Add(1)
	go l.drain()
	return l
}

func (l *EventLog) drain() {
	defer l.wg.Done()
	for line := range l.queue {
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := io.WriteString(l.w, line); err != nil {
			mfrc522.Debugf("event log: write failed: %v", err)
		}
	}
}

// Enqueue queues one line. It never blocks; after Close it drops.
func (l *EventLog) Enqueue(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.queue <- msg:
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns the number of lines that were not written
func (l *EventLog) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops accepting lines and waits for the queued ones to be written
func (l *EventLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	l.wg.Wait()
	if n := l.dropped.Load(); n > 0 {
		return fmt.Errorf("event log: %d lines dropped", n)
	}
	return nil
}
