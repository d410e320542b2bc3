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

// Package detection finds MFRC522 readers on the host's SPI buses.
//
// Candidates come from the MFRC522_SPI_DEVICE environment variable and the
// spidev device nodes. In Probe mode each candidate is opened and its
// VersionReg read; only nodes answering with a known chip version are
// reported.
package detection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
)

// EnvSPIDevice names an SPI device to try before scanning
const EnvSPIDevice = "MFRC522_SPI_DEVICE"

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only lists device nodes without any communication
	Passive Mode = iota
	// Probe mode reads VersionReg from every candidate
	Probe
)

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - a device node exists
	Low Confidence = iota
	// High confidence - the node answered with a known chip version
	High
)

// chipVersions maps VersionReg values to chip names.
var chipVersions = map[byte]string{
	0x12: "MFRC522 (clone)",
	0x88: "FM17522",
	0x90: "MFRC522 v0.0",
	0x91: "MFRC522 v1.0",
	0x92: "MFRC522 v2.0",
}

// ChipName returns the chip name for a VersionReg value
func ChipName(version byte) (string, bool) {
	name, ok := chipVersions[version]
	return name, ok
}

// DeviceInfo represents a detected reader
type DeviceInfo struct {
	// Device node (e.g., "/dev/spidev1.0")
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
	// VersionReg value, zero when not probed
	Version byte
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	confidence := "low"
	if d.Confidence == High {
		confidence = "high"
	}
	return fmt.Sprintf("%s at %s (confidence: %s)", d.Name, d.Path, confidence)
}

// ProbeFunc reads the chip version from the device at path
type ProbeFunc func(ctx context.Context, path string) (byte, error)

// Options configures the detection behavior
type Options struct {
	// Probe replaces the SPI version probe, nil means ProbeVersion
	Probe ProbeFunc
	// Glob selects the device nodes to scan
	Glob string
	// Device paths to explicitly ignore
	IgnorePaths []string
	// Cache TTL duration
	CacheTTL time.Duration
	// Maximum time to spend probing one device
	ProbeTimeout time.Duration
	// Detection invasiveness level
	Mode Mode
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Glob:         "/dev/spidev*",
		Mode:         Probe,
		ProbeTimeout: 2 * time.Second,
		EnableCache:  true,
		CacheTTL:     30 * time.Second,
	}
}

// Errors
var (
	// ErrNoDevicesFound indicates no readers were detected
	ErrNoDevicesFound = errors.New("no MFRC522 devices found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
)

// Detect searches for readers. Cached results are filtered through
// IgnorePaths like fresh ones.
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts.EnableCache {
		if cached, found := results.get(opts.Glob, opts.CacheTTL); found {
			return filterDevices(cached, opts.IgnorePaths), nil
		}
	}

	devices, err := detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return nil, err
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			results.put(opts.Glob, devices)
		} else {
			results.forget(opts.Glob)
		}
	}
	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

func detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	probe := opts.Probe
	if probe == nil {
		probe = ProbeVersion
	}

	var devices []DeviceInfo
	for _, path := range candidates(opts.Glob) {
		select {
		case <-ctx.Done():
			return devices, ErrDetectionTimeout
		default:
		}

		if IsPathIgnored(path, opts.IgnorePaths) {
			continue
		}

		device := DeviceInfo{
			Path:       path,
			Name:       fmt.Sprintf("SPI device %s", filepath.Base(path)),
			Confidence: Low,
		}
		if opts.Mode == Passive {
			devices = append(devices, device)
			continue
		}

		if probeDevice(ctx, probe, opts.ProbeTimeout, &device) {
			devices = append(devices, device)
		}
	}
	return devices, nil
}

// probeDevice reads the chip version and upgrades confidence on a match
func probeDevice(ctx context.Context, probe ProbeFunc, timeout time.Duration, device *DeviceInfo) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	version, err := probe(ctx, device.Path)
	if err != nil {
		mfrc522.Debugf("detection: probe %s: %v", device.Path, err)
		return false
	}
	name, ok := ChipName(version)
	if !ok {
		mfrc522.Debugf("detection: %s answered version 0x%02X, not an MFRC522", device.Path, version)
		return false
	}
	device.Name = name
	device.Version = version
	device.Confidence = High
	return true
}

// candidates lists the environment device first, then glob matches in
// order, without duplicates.
func candidates(glob string) []string {
	var paths []string
	if env := os.Getenv(EnvSPIDevice); env != "" {
		paths = append(paths, env)
	}
	if glob != "" {
		matches, err := filepath.Glob(glob)
		if err == nil {
			sort.Strings(matches)
			paths = append(paths, matches...)
		}
	}
	return deduplicatePaths(paths)
}

func deduplicatePaths(paths []string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	return unique
}

// ProbeVersion opens path as an SPI transport and reads VersionReg
func ProbeVersion(_ context.Context, path string) (byte, error) {
	transport, err := spi.Open(path)
	defer func() { _ = transport.Close() }()
	if err != nil {
		return 0, err
	}

	device, err := mfrc522.New(transport)
	if err != nil {
		return 0, err
	}
	version, err := device.Version()
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return version, nil
}

// filterDevices applies IgnorePaths to a device list
func filterDevices(devices []DeviceInfo, ignorePaths []string) []DeviceInfo {
	if len(ignorePaths) == 0 {
		return devices
	}
	var filtered []DeviceInfo
	for _, device := range devices {
		if !IsPathIgnored(device.Path, ignorePaths) {
			filtered = append(filtered, device)
		}
	}
	return filtered
}
