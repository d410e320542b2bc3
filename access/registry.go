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
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// DefaultCapacity is the number of tags a registry holds unless configured
const DefaultCapacity = 256

// Registry errors
var (
	ErrRegistryFull = errors.New("tag registry full")
	ErrTagNotFound  = errors.New("tag not found")
)

// Tag is one enrolled credential
type Tag struct {
	LastSeen time.Time
	UID      uint32
	Allowed  bool
}

// Registry is a capacity-bounded set of tags kept in enrollment order.
// UIDs are unique. Readers get copies, never the backing slice.
type Registry struct {
	now      func() time.Time
	tags     []Tag
	mu       syncutil.RWMutex
	capacity int
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithClock replaces time.Now as the source of LastSeen timestamps
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry. A non-positive capacity means
// DefaultCapacity.
func NewRegistry(capacity int, opts ...RegistryOption) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Registry{
		now:      time.Now,
		tags:     make([]Tag, 0, capacity),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capacity returns the maximum number of tags
func (r *Registry) Capacity() int {
	return r.capacity
}

func (r *Registry) indexOf(uid uint32) int {
	return slices.IndexFunc(r.tags, func(t Tag) bool { return t.UID == uid })
}

// Exists reports whether uid is enrolled
func (r *Registry) Exists(uid uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(uid) >= 0
}

// Lookup returns the tag for uid. The boolean is false when it is not enrolled.
func (r *Registry) Lookup(uid uint32) (Tag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(uid); i >= 0 {
		return r.tags[i], true
	}
	return Tag{}, false
}

// InsertOrUpdate records a detection of uid. An enrolled tag keeps its
// position and gets the new permission and timestamp. An unknown tag is
// appended, or rejected with ErrRegistryFull when no slot is left, in which
// case the registry is unchanged.
func (r *Registry) InsertOrUpdate(uid uint32, allowed bool) (created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if i := r.indexOf(uid); i >= 0 {
		r.tags[i].Allowed = allowed
		r.tags[i].LastSeen = now
		return false, nil
	}
	if len(r.tags) >= r.capacity {
		return false, fmt.Errorf("%w: %d tags enrolled, cannot add 0x%08X", ErrRegistryFull, len(r.tags), uid)
	}
	r.tags = append(r.tags, Tag{UID: uid, Allowed: allowed, LastSeen: now})
	return true, nil
}

// Remove deletes uid, shifting later tags down so order is preserved, and
// returns the removed tag. Removing an unknown uid returns ErrTagNotFound and
// changes nothing.
func (r *Registry) Remove(uid uint32) (Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(uid)
	if i < 0 {
		return Tag{}, fmt.Errorf("%w: 0x%08X", ErrTagNotFound, uid)
	}
	removed := r.tags[i]
	r.tags = slices.Delete(r.tags, i, i+1)
	return removed, nil
}

// List returns a snapshot of every tag in enrollment order
func (r *Registry) List() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.tags)
}

// Len returns the number of enrolled tags
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tags)
}

// WriteTable writes a UID/PERM/LAST table of the registry to w
func (r *Registry) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "UID\tPERM\tLAST"); err != nil {
		return fmt.Errorf("write tag table: %w", err)
	}
	for _, t := range r.List() {
		perm := 0
		if t.Allowed {
			perm = 1
		}
		if _, err := fmt.Fprintf(tw, "0x%08X\t%d\t%s\n", t.UID, perm, t.LastSeen.Format(time.DateTime)); err != nil {
			return fmt.Errorf("write tag table: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write tag table: %w", err)
	}
	return nil
}
