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
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// debugSink fans debug lines out to the session log, and to the console
// when debug output is enabled.
type debugSink struct {
	console io.Writer
	session io.Writer
	file    *os.File
	path    string
	mu      sync.Mutex
	enabled bool
}

var debug = &debugSink{
	console: os.Stdout,
	enabled: os.Getenv("MFRC522_DEBUG") != "" || os.Getenv("DEBUG") != "",
}

// Debugf logs a formatted debug line. Lines always reach an open session
// log; the console only sees them with MFRC522_DEBUG or DEBUG set, or
// after SetDebugEnabled(true).
func Debugf(format string, args ...any) {
	debug.write(fmt.Sprintf(format, args...))
}

// Debugln is Debugf with fmt.Sprint operand formatting.
func Debugln(args ...any) {
	debug.write(fmt.Sprint(args...))
}

func (s *debugSink) write(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		_, _ = fmt.Fprintf(s.session, "%s DEBUG: %s\n", time.Now().Format("15:04:05.000"), msg)
	}
	if s.enabled {
		_, _ = fmt.Fprintf(s.console, "DEBUG: %s\n", msg)
	}
}

// SetDebugEnabled toggles console debug output
func SetDebugEnabled(enabled bool) {
	debug.mu.Lock()
	debug.enabled = enabled
	debug.mu.Unlock()
}
