// SPDX-License-Identifier: Apache-2.0

package pwmsink

import (
	"testing"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

func TestSimClampsOutOfRange(t *testing.T) {
	s := NewSim()
	if err := s.SetChannelUs(0, 100); err != nil {
		t.Fatalf("SetChannelUs() error = %v", err)
	}

	us, _ := s.Snapshot()
	if us[0] != posepkt.PWMMinUs {
		t.Errorf("us[0] = %d, want clamped to %d", us[0], posepkt.PWMMinUs)
	}
}

func TestSimSleepWake(t *testing.T) {
	s := NewSim()
	if err := s.Sleep(); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if _, asleep := s.Snapshot(); !asleep {
		t.Errorf("Snapshot() asleep = false, want true")
	}

	if err := s.Wake(); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
	if _, asleep := s.Snapshot(); asleep {
		t.Errorf("Snapshot() asleep = true, want false")
	}
}

func TestSimSetAllUs(t *testing.T) {
	s := NewSim()
	var want [posepkt.ChannelCount]uint16
	for i := range want {
		want[i] = uint16(1000 + i*50)
	}

	if err := s.SetAllUs(want); err != nil {
		t.Fatalf("SetAllUs() error = %v", err)
	}

	got, _ := s.Snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("us[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
