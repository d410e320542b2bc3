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
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// InitSessionLog opens mfrc522_<date>_<time>.log in dir (the working
// directory when empty) and sends every debug line there until
// CloseSessionLog. A log that is already open is closed first.
func InitSessionLog(dir string) (string, error) {
	name := filepath.Join(dir, "mfrc522_"+time.Now().Format("20060102_150405")+".log")

	f, err := os.Create(name) //nolint:gosec // name is built from dir and a timestamp
	if err != nil {
		return "", fmt.Errorf("create session log: %w", err)
	}
	sessionHeader(f)

	debug.mu.Lock()
	prev := debug.closeLocked()
	debug.file, debug.session, debug.path = f, f, name
	debug.mu.Unlock()

	if prev != nil {
		Debugf("previous session log not closed cleanly: %v", prev)
	}
	return name, nil
}

// CloseSessionLog writes a footer and closes the session log, if any.
func CloseSessionLog() error {
	debug.mu.Lock()
	defer debug.mu.Unlock()
	return debug.closeLocked()
}

// SessionLogPath returns the open session log's path, or "" when none is open.
func SessionLogPath() string {
	debug.mu.Lock()
	defer debug.mu.Unlock()
	return debug.path
}

func (s *debugSink) closeLocked() error {
	if s.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(s.file, "\n%s session closed\n", time.Now().Format("15:04:05.000"))

	err := s.file.Close()
	s.file, s.session, s.path = nil, nil, ""
	if err != nil {
		return fmt.Errorf("close session log: %w", err)
	}
	return nil
}

func sessionHeader(w io.Writer) {
	fields := [][2]string{
		{"started", time.Now().Format(time.RFC3339)},
		{"pid", fmt.Sprint(os.Getpid())},
		{"platform", runtime.GOOS + "/" + runtime.GOARCH},
		{"go", runtime.Version()},
		{"args", strings.Join(os.Args, " ")},
	}
	if exe, err := os.Executable(); err == nil {
		fields = append(fields, [2]string{"executable", exe})
	}

	_, _ = fmt.Fprintln(w, "# mfrc522 session log")
	for _, f := range fields {
		_, _ = fmt.Fprintf(w, "# %-10s %s\n", f[0]+":", f[1])
	}
	_, _ = fmt.Fprintln(w)
}
