// SPDX-License-Identifier: Apache-2.0

package pwmsink

import (
	"sync"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

// Sim is an in-memory Sink for --sim runs and tests: it records the
// last commanded pulse width per channel and whether the device is
// asleep, with no hardware access at all.
type Sim struct {
	mu     sync.Mutex
	us     [posepkt.ChannelCount]uint16
	asleep bool
}

// NewSim returns a Sim with every channel at neutral.
func NewSim() *Sim {
	s := &Sim{}
	for i := range s.us {
		s.us[i] = posepkt.PWMNeutralUs
	}
	return s
}

// SetChannelUs implements Sink.
func (s *Sim) SetChannelUs(channel int, us uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.us[channel] = posepkt.ClampUs(us)
	return nil
}

// SetAllUs implements Sink.
func (s *Sim) SetAllUs(us [posepkt.ChannelCount]uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range us {
		s.us[i] = posepkt.ClampUs(v)
	}
	return nil
}

// Sleep implements Sink.
func (s *Sim) Sleep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asleep = true
	return nil
}

// Wake implements Sink.
func (s *Sim) Wake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asleep = false
	return nil
}

// Close implements Sink.
func (s *Sim) Close() error { return nil }

// Snapshot returns the current per-channel pulse widths and sleep state,
// for assertions in tests.
func (s *Sim) Snapshot() ([posepkt.ChannelCount]uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.us, s.asleep
}

var _ Sink = (*Sim)(nil)
