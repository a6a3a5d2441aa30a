// SPDX-License-Identifier: Apache-2.0

package motion

import (
	"testing"

	"github.com/brindlebot/walkctl/internal/pwmsink"
	"github.com/brindlebot/walkctl/internal/ring"
	"github.com/brindlebot/walkctl/internal/safety"
	"github.com/brindlebot/walkctl/pkg/posepkt"
)

func newTestRuntime(t *testing.T) (*Runtime, *ring.Ring, *pwmsink.Sim) {
	t.Helper()
	r, err := ring.New(make([]byte, ring.TotalSize))
	if err != nil {
		t.Fatalf("ring.New() error = %v", err)
	}
	sink := pwmsink.NewSim()
	wd := safety.NewWatchdog(&safety.Faults{})
	rt := NewRuntime(r, sink, wd, &safety.Faults{})
	return rt, r, sink
}

func TestRuntimeStartsIdleAtNeutral(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	if rt.State() != StateIdle {
		t.Fatalf("State() = %v, want idle", rt.State())
	}
	for i, us := range rt.CurrentUs() {
		if us != posepkt.PWMNeutralUs {
			t.Fatalf("CurrentUs()[%d] = %d, want neutral", i, us)
		}
	}
}

func TestRuntimeMovesTowardTarget(t *testing.T) {
	rt, r, _ := newTestRuntime(t)

	p := posepkt.New(1)
	p.TMs = 100
	for i := range p.ServoUs {
		p.ServoUs[i] = 2000
	}
	if err := r.Push(p); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if err := rt.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if rt.State() != StateMoving {
		t.Fatalf("State() after first packet = %v, want moving", rt.State())
	}

	for i := 0; i < 10 && rt.State() == StateMoving; i++ {
		if err := rt.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}

	if rt.State() != StateIdle {
		t.Fatalf("State() after move completes = %v, want idle", rt.State())
	}
	for i, us := range rt.CurrentUs() {
		if us != 2000 {
			t.Fatalf("CurrentUs()[%d] = %d, want 2000", i, us)
		}
	}
}

func TestRuntimeEstopForcesNeutralImmediately(t *testing.T) {
	rt, r, _ := newTestRuntime(t)

	moving := posepkt.New(1)
	moving.TMs = 5000
	for i := range moving.ServoUs {
		moving.ServoUs[i] = 2000
	}
	_ = r.Push(moving)
	_ = rt.Tick()
	if rt.State() != StateMoving {
		t.Fatalf("precondition: State() = %v, want moving", rt.State())
	}

	estop := posepkt.New(2)
	estop.Flags |= posepkt.FlagEstop
	_ = r.Push(estop)

	if err := rt.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if rt.State() != StateEstop {
		t.Fatalf("State() after ESTOP packet = %v, want estop", rt.State())
	}
	for i, us := range rt.CurrentUs() {
		if us != posepkt.PWMNeutralUs {
			t.Fatalf("CurrentUs()[%d] = %d, want neutral after ESTOP", i, us)
		}
	}
}

func TestRuntimeHoldFreezesCurrentPose(t *testing.T) {
	rt, r, _ := newTestRuntime(t)

	moving := posepkt.New(1)
	moving.TMs = 5000
	for i := range moving.ServoUs {
		moving.ServoUs[i] = 1800
	}
	_ = r.Push(moving)
	_ = rt.Tick()
	before := rt.CurrentUs()

	hold := posepkt.New(2)
	hold.Flags |= posepkt.FlagHold
	_ = r.Push(hold)
	_ = rt.Tick()

	if rt.State() != StateHold {
		t.Fatalf("State() after HOLD packet = %v, want hold", rt.State())
	}

	after := rt.CurrentUs()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("pose changed across HOLD: before=%v after=%v", before, after)
		}
	}
}

func TestRuntimeDropsStaleSequence(t *testing.T) {
	rt, r, _ := newTestRuntime(t)

	p1 := posepkt.New(5)
	p1.TMs = 100
	for i := range p1.ServoUs {
		p1.ServoUs[i] = 1900
	}
	_ = r.Push(p1)
	_ = rt.Tick()
	state := rt.State()

	stale := posepkt.New(3) // lower than lastSeq=5
	stale.TMs = 100
	for i := range stale.ServoUs {
		stale.ServoUs[i] = 2200
	}
	_ = r.Push(stale)
	_ = rt.Tick()

	if rt.State() != state {
		t.Fatalf("stale packet changed state: before=%v after=%v", state, rt.State())
	}
}

func TestRuntimeClampsOutOfRangeTargets(t *testing.T) {
	rt, r, _ := newTestRuntime(t)

	p := posepkt.New(1)
	p.TMs = 20
	for i := range p.ServoUs {
		p.ServoUs[i] = 9999
	}
	_ = r.Push(p)
	_ = rt.Tick()
	_ = rt.Tick()

	for i, us := range rt.CurrentUs() {
		if us > posepkt.PWMMaxUs {
			t.Fatalf("CurrentUs()[%d] = %d exceeds PWMMaxUs %d", i, us, posepkt.PWMMaxUs)
		}
	}
}
