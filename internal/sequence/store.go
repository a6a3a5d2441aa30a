// SPDX-License-Identifier: Apache-2.0

// Package sequence loads named motion sequences from JSON and serves
// them for frame-by-frame playback, expanding the legacy 8-channel leg
// frame format into the current 13-channel pose. Grounded on
// brain_daemon/motion_loader.cpp.
package sequence

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

const legacyServoCount = 8

// Frame is one legacy 8-channel leg pose plus its move duration.
type Frame struct {
	ServoUs [legacyServoCount]uint16 `json:"servo_us"`
	TMs     uint32                   `json:"t_ms"`
}

// Sequence is a named, ordered list of frames.
type Sequence struct {
	ID          int     `json:"id"`
	Name        string  `json:"-"`
	Description string  `json:"description"`
	Frames      []Frame `json:"frames"`
}

type rawFile struct {
	Sequences map[string]rawSequence `json:"sequences"`
}

type rawSequence struct {
	ID          int     `json:"id"`
	Description string  `json:"description"`
	Frames      []Frame `json:"frames"`
}

// Store owns a set of sequences loaded from one JSON document.
// Sequences are loaded once at startup; iterators borrow them
// read-only.
type Store struct {
	byName map[string]*Sequence
	byID   map[int]*Sequence
}

// LoadFile reads and parses a sequence file at path.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sequence: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes the {"sequences": {name: {...}}} document in data.
func Parse(data []byte) (*Store, error) {
	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sequence: parse: %w", err)
	}

	s := &Store{
		byName: make(map[string]*Sequence, len(raw.Sequences)),
		byID:   make(map[int]*Sequence, len(raw.Sequences)),
	}
	for name, rs := range raw.Sequences {
		seq := &Sequence{ID: rs.ID, Name: name, Description: rs.Description, Frames: rs.Frames}
		s.byName[name] = seq
		s.byID[rs.ID] = seq
	}
	return s, nil
}

// Has reports whether name is a known sequence.
func (s *Store) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Get returns the sequence named name, or nil if unknown.
func (s *Store) Get(name string) *Sequence {
	return s.byName[name]
}

// GetByID returns the sequence with the given id, or nil if unknown.
func (s *Store) GetByID(id int) *Sequence {
	return s.byID[id]
}

// List returns every loaded sequence's name.
func (s *Store) List() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	return names
}

// ExpandPose maps a legacy 8-channel frame onto the current 13-channel
// layout: channels 0-7 carry the clamped leg servos, 8-11 sit at
// neutral (unused), and 12 (the scan servo) stays neutral since it is
// not part of any legacy sequence.
func ExpandPose(f Frame) [posepkt.ChannelCount]uint16 {
	var out [posepkt.ChannelCount]uint16
	for i := 0; i < legacyServoCount; i++ {
		out[i] = posepkt.ClampUs(f.ServoUs[i])
	}
	for i := legacyServoCount; i < posepkt.ChannelCount; i++ {
		out[i] = posepkt.PWMNeutralUs
	}
	return out
}
