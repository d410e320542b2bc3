//go:build !deadlock

// Package syncutil holds the mutex types shared by the reader, the access
// registry and the simulator. Without build tags they are plain sync
// mutexes; build with -tags=deadlock to swap in github.com/sasha-s/go-deadlock.
package syncutil

import (
	"sync"
	"time"
)

// DeadlockDetection reports whether lock-order and timeout checks are active.
const DeadlockDetection = false

//nolint:gocritic // Embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

//nolint:gocritic // Embedding exposes Lock/RLock directly
type RWMutex struct {
	sync.RWMutex
}

// SetLockTimeout is a no-op without the deadlock build tag.
func SetLockTimeout(time.Duration) {}
