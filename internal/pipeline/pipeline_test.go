// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/brindlebot/walkctl/internal/ring"
	"github.com/brindlebot/walkctl/internal/sequence"
	"github.com/brindlebot/walkctl/pkg/posepkt"
)

type fakeEyes struct {
	events []string
}

func (f *fakeEyes) SendEvent(json string) error {
	f.events = append(f.events, json)
	return nil
}

func newTestProducer(t *testing.T) *Producer {
	t.Helper()
	dir := t.TempDir()
	brainPath := filepath.Join(dir, "brain.sock")
	musclePath := filepath.Join(dir, "muscle.sock")

	brainBell, err := ring.NewDoorbell(brainPath)
	if err != nil {
		t.Fatalf("NewDoorbell(brain) error = %v", err)
	}
	t.Cleanup(func() { brainBell.Close() })
	brainBell.Dial(musclePath)

	muscleBell, err := ring.NewDoorbell(musclePath)
	if err != nil {
		t.Fatalf("NewDoorbell(muscle) error = %v", err)
	}
	t.Cleanup(func() { muscleBell.Close() })

	r, err := ring.New(make([]byte, ring.TotalSize))
	if err != nil {
		t.Fatalf("ring.New() error = %v", err)
	}

	return &Producer{Ring: r, Doorbell: brainBell}
}

func newTestPipeline(t *testing.T) (*Pipeline, *Producer, *fakeEyes) {
	t.Helper()
	prod := newTestProducer(t)
	eyes := &fakeEyes{}
	return New(prod, eyes, nil), prod, eyes
}

const testSequenceDoc = `{
  "sequences": {
    "wave": {
      "id": 1,
      "description": "test",
      "frames": [
        {"servo_us": [2000,1500,1500,1500,1500,1500,1500,1500], "t_ms": 10},
        {"servo_us": [1500,2000,1500,1500,1500,1500,1500,1500], "t_ms": 10}
      ]
    }
  }
}`

func TestQueueMotionStartsLegacyProgram(t *testing.T) {
	pl, prod, _ := newTestPipeline(t)
	store, err := sequence.Parse([]byte(testSequenceDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	pl.store = store

	pl.QueueMotion(Command{Name: "wave"})
	if err := pl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if pl.Mode() != ModeLegacyProgram {
		t.Fatalf("Mode() = %v, want ModeLegacyProgram", pl.Mode())
	}

	pose := pl.CurrentPose()
	if pose[0] != 2000 {
		t.Errorf("CurrentPose()[0] = %d, want 2000", pose[0])
	}

	if _, err := prod.Ring.Drain(); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}

func TestUnknownSequenceNameStaysIdle(t *testing.T) {
	pl, _, _ := newTestPipeline(t)
	store, _ := sequence.Parse([]byte(testSequenceDoc))
	pl.store = store

	pl.QueueMotion(Command{Name: "does-not-exist"})
	if err := pl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if pl.Mode() != ModeIdle {
		t.Fatalf("Mode() = %v, want ModeIdle", pl.Mode())
	}
}

func TestEstopLatchesAndNotifiesEyes(t *testing.T) {
	pl, prod, eyes := newTestPipeline(t)
	store, _ := sequence.Parse([]byte(testSequenceDoc))
	pl.store = store
	pl.QueueMotion(Command{Name: "wave"})
	_ = pl.Tick()

	if err := pl.Estop(); err != nil {
		t.Fatalf("Estop() error = %v", err)
	}
	if !pl.IsEstop() {
		t.Fatalf("IsEstop() = false after Estop()")
	}
	if pl.Mode() != ModeIdle {
		t.Fatalf("Mode() = %v after Estop(), want ModeIdle", pl.Mode())
	}
	if len(eyes.events) != 1 || eyes.events[0] == "" {
		t.Fatalf("eyes.events = %v, want one mood event", eyes.events)
	}

	pkts, err := prod.Ring.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	found := false
	for _, p := range pkts {
		if p.HasEstop() {
			found = true
		}
	}
	if !found {
		t.Fatalf("no ESTOP packet found among drained packets %v", pkts)
	}

	pl.QueueMotion(Command{Name: "wave"})
	if len(pl.queue) != 0 || pl.Mode() != ModeIdle {
		t.Fatalf("QueueMotion accepted while ESTOP latched")
	}
}

func TestClearEstopNotifiesEyesNeutral(t *testing.T) {
	pl, _, eyes := newTestPipeline(t)
	if err := pl.Estop(); err != nil {
		t.Fatalf("Estop() error = %v", err)
	}
	if err := pl.ClearEstop(); err != nil {
		t.Fatalf("ClearEstop() error = %v", err)
	}
	if pl.IsEstop() {
		t.Fatalf("IsEstop() = true after ClearEstop()")
	}
	if len(eyes.events) != 2 {
		t.Fatalf("eyes.events = %v, want angry then neutral", eyes.events)
	}
}

func TestTickSendsHeartbeatAtMinimumCadence(t *testing.T) {
	pl, prod, _ := newTestPipeline(t)
	pl.lastHeartbeat = time.Now().Add(-HeartbeatPeriod - time.Millisecond)

	if err := pl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	pkts, err := prod.Ring.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(pkts) != 1 {
		t.Fatalf("Drain() = %v, want exactly one heartbeat packet", pkts)
	}
	if !pkts[0].HasHold() {
		t.Errorf("heartbeat packet missing HOLD flag")
	}
	for _, us := range pkts[0].ServoUs {
		if us != posepkt.PWMNeutralUs {
			t.Errorf("heartbeat packet servo = %d, want neutral", us)
		}
	}
}

func TestStopClearsQueueAndMode(t *testing.T) {
	pl, _, _ := newTestPipeline(t)
	store, _ := sequence.Parse([]byte(testSequenceDoc))
	pl.store = store
	pl.QueueMotion(Command{Name: "wave"})
	_ = pl.Tick()

	pl.Stop()
	if pl.Mode() != ModeIdle {
		t.Fatalf("Mode() = %v after Stop(), want ModeIdle", pl.Mode())
	}
}
