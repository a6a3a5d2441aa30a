// SPDX-License-Identifier: Apache-2.0

// Package config persists the brain daemon's tunables to a JSON file.
// Grounded on brain_daemon/config_store.hpp; the original's load() was
// a TODO-stub that silently kept compiled-in defaults, its own comment
// recommending a real JSON library for the job, so this package
// supplies the parse it never got.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brindlebot/walkctl/internal/scan"
)

// Store holds every persisted tunable, defaulting to the original's
// compiled-in values until Load overwrites them.
type Store struct {
	V                       string `json:"v"`
	DefaultWakepose         string `json:"default_wakepose"`
	EyeBacklight            uint8  `json:"eye_backlight"`
	EyeAutoMode             bool   `json:"eye_auto_mode"`
	MotionMode              string `json:"motion_mode"`
	InterpQ16               bool   `json:"interp_q16"`
	EnableEyeService        bool   `json:"enable_eye_service"`
	EnableScan              bool   `json:"enable_scan"`
	EnableObstacleAvoidance bool   `json:"enable_obstacle_avoidance"`

	ScanMinDeg  int `json:"scan_min_deg"`
	ScanMaxDeg  int `json:"scan_max_deg"`
	ScanStepDeg int `json:"scan_step_deg"`
	ScanRateHz  int `json:"scan_rate_hz"`
}

// New returns a Store populated with the original's compiled-in
// defaults.
func New() *Store {
	return &Store{
		V:                       "3.1",
		DefaultWakepose:         "default",
		EyeBacklight:            180,
		EyeAutoMode:             true,
		MotionMode:              "legacy_prg",
		InterpQ16:               false,
		EnableEyeService:        true,
		EnableScan:              true,
		EnableObstacleAvoidance: true,
		ScanMinDeg:              20,
		ScanMaxDeg:              160,
		ScanStepDeg:             10,
		ScanRateHz:              5,
	}
}

// Load reads and decodes a config file at path, replacing every field
// of s that the file sets; fields absent from the file keep s's
// current values, so a partial config file is never an error.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Save encodes s as indented JSON to path.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ScanProfile builds a scan.Profile from the persisted scan fields,
// keeping the dwell time at the scan package's own default since the
// original never exposed it as a config field.
func (s *Store) ScanProfile() scan.Profile {
	p := scan.DefaultProfile()
	p.MinDeg = s.ScanMinDeg
	p.MaxDeg = s.ScanMaxDeg
	p.StepDeg = s.ScanStepDeg
	p.RateHz = s.ScanRateHz
	return p
}
