// SPDX-License-Identifier: Apache-2.0

package sequence

import (
	"testing"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

const testDoc = `{
  "sequences": {
    "wave": {
      "id": 1,
      "description": "wave a paw",
      "frames": [
        {"servo_us": [1500,1500,1500,1500,1500,1500,1500,1500], "t_ms": 200},
        {"servo_us": [2000,1500,1500,1500,1500,1500,1500,1500], "t_ms": 150}
      ]
    },
    "sit": {
      "id": 2,
      "description": "sit down",
      "frames": []
    }
  }
}`

func TestParseLoadsAllSequences(t *testing.T) {
	s, err := Parse([]byte(testDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !s.Has("wave") || !s.Has("sit") {
		t.Fatalf("List() = %v, want wave and sit present", s.List())
	}
	if len(s.List()) != 2 {
		t.Fatalf("List() returned %d names, want 2", len(s.List()))
	}
}

func TestGetByID(t *testing.T) {
	s, err := Parse([]byte(testDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	seq := s.GetByID(1)
	if seq == nil || seq.Name != "wave" {
		t.Fatalf("GetByID(1) = %v, want sequence named wave", seq)
	}
	if s.GetByID(999) != nil {
		t.Fatalf("GetByID(999) = non-nil, want nil for unknown id")
	}
}

func TestExpandPoseFillsUnusedAndScanChannels(t *testing.T) {
	f := Frame{ServoUs: [8]uint16{2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000}, TMs: 100}
	pose := ExpandPose(f)

	for i := 0; i < 8; i++ {
		if pose[i] != 2000 {
			t.Errorf("pose[%d] = %d, want 2000", i, pose[i])
		}
	}
	for i := 8; i < posepkt.ChannelCount; i++ {
		if pose[i] != posepkt.PWMNeutralUs {
			t.Errorf("pose[%d] = %d, want neutral", i, pose[i])
		}
	}
}

func TestExpandPoseClampsLegacyChannels(t *testing.T) {
	f := Frame{ServoUs: [8]uint16{100, 100, 100, 100, 100, 100, 100, 100}}
	pose := ExpandPose(f)

	for i := 0; i < 8; i++ {
		if pose[i] != posepkt.PWMMinUs {
			t.Errorf("pose[%d] = %d, want clamped to %d", i, pose[i], posepkt.PWMMinUs)
		}
	}
}
