//go:build deadlock

// Package syncutil holds the mutex types shared by the reader, the access
// registry and the simulator. This file is compiled with -tags=deadlock and
// routes them through go-deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockDetection reports whether lock-order and timeout checks are active.
const DeadlockDetection = true

// Mutex wraps deadlock.Mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex.
type RWMutex struct {
	deadlock.RWMutex
}

// SetLockTimeout sets how long a lock may be waited on before go-deadlock
// reports it. Zero or negative disables the timeout check.
func SetLockTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	deadlock.Opts.DeadlockTimeout = d
}
