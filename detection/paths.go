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

package detection

import "path/filepath"

// IsPathIgnored reports whether devicePath names the same node as one of
// ignorePaths. Paths are cleaned, and udev-style symlinks (for example
// /dev/rfid -> /dev/spidev0.0) are followed when they resolve.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	target := resolvePath(devicePath)
	for _, p := range ignorePaths {
		if p != "" && resolvePath(p) == target {
			return true
		}
	}
	return false
}

// resolvePath cleans path and follows symlinks, falling back to the cleaned
// path for nodes that do not exist.
func resolvePath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
