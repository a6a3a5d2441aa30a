// SPDX-License-Identifier: Apache-2.0

package motion

import (
	"context"
	"time"

	"github.com/brindlebot/walkctl/internal/interpolate"
	"github.com/brindlebot/walkctl/internal/pwmsink"
	"github.com/brindlebot/walkctl/internal/ring"
	"github.com/brindlebot/walkctl/internal/safety"
	"github.com/brindlebot/walkctl/pkg/posepkt"
)

// TickPeriod is the fixed 50 Hz motion update rate (§4.8).
const TickPeriod = 20 * time.Millisecond

// Runtime is the muscle-side motion state machine: it drains the
// shared ring, enforces ESTOP/HOLD precedence ahead of interpolation,
// and writes every tick's pose to a pwmsink.Sink.
type Runtime struct {
	Ring     *ring.Ring
	Sink     pwmsink.Sink
	Watchdog *safety.Watchdog
	Faults   *safety.Faults

	state        State
	currentUs    [posepkt.ChannelCount]uint16
	targetUs     [posepkt.ChannelCount]uint16
	interpolator interpolate.Interpolator
	lastSeq      uint32
}

// NewRuntime constructs a Runtime with every channel at neutral.
func NewRuntime(r *ring.Ring, sink pwmsink.Sink, wd *safety.Watchdog, faults *safety.Faults) *Runtime {
	rt := &Runtime{Ring: r, Sink: sink, Watchdog: wd, Faults: faults, state: StateIdle}
	for i := range rt.currentUs {
		rt.currentUs[i] = posepkt.PWMNeutralUs
		rt.targetUs[i] = posepkt.PWMNeutralUs
	}
	return rt
}

// State returns the current motion state.
func (rt *Runtime) State() State { return rt.state }

// CurrentUs returns a copy of the currently output pose.
func (rt *Runtime) CurrentUs() [posepkt.ChannelCount]uint16 { return rt.currentUs }

// Run blocks, ticking at TickPeriod until ctx is done. Each tick drains
// any packets waiting in the ring, then advances the state machine and
// writes the resulting pose to Sink — the ring-drain step is folded
// into this loop rather than a separate goroutine, matching the
// original's single motion task draining its own queue.
func (rt *Runtime) Run(ctx context.Context) {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.Tick()
		}
	}
}

// Tick performs one 20ms step: drain the ring, apply each drained
// packet in ring order, sync with the watchdog, advance interpolation, and
// output the resulting pose.
func (rt *Runtime) Tick() error {
	if rt.Ring != nil {
		pkts, err := rt.Ring.Drain()
		if err != nil {
			rt.raise(faultForDecodeErr(err))
		}
		for _, p := range pkts {
			rt.applyPacket(p)
		}
	}

	rt.syncWatchdog()
	rt.advance()
	rt.publishEstopFlag()

	if rt.Sink != nil {
		return rt.Sink.SetAllUs(rt.currentUs)
	}
	return nil
}

// publishEstopFlag mirrors the motion state onto the shared header's
// ESTOP bit, which the muscle side owns per the ring's flag
// partitioning (brain: BRAIN_READY/OVERFLOW, muscle: MUSCLE_READY/ESTOP).
func (rt *Runtime) publishEstopFlag() {
	if rt.Ring == nil {
		return
	}
	if rt.state == StateEstop {
		rt.Ring.SetFlag(ring.FlagEstop)
	} else {
		rt.Ring.ClearFlag(ring.FlagEstop)
	}
}

// applyPacket enforces §4.13's validation/precedence order: stale
// sequence numbers are dropped without feeding the watchdog; ESTOP
// always wins; HOLD freezes in place; otherwise the packet starts a
// new interpolated move.
func (rt *Runtime) applyPacket(p posepkt.Packet) {
	if p.Seq <= rt.lastSeq {
		return
	}
	rt.lastSeq = p.Seq

	if rt.Watchdog != nil {
		rt.Watchdog.Feed()
	}

	if p.HasEstop() {
		rt.state = StateEstop
		if rt.Watchdog != nil {
			rt.Watchdog.SignalEstop()
		}
		for i := range rt.targetUs {
			rt.targetUs[i] = posepkt.PWMNeutralUs
		}
		rt.interpolator.Abort()
		return
	}

	if p.HasHold() {
		rt.state = StateHold
		rt.interpolator.Abort()
		return
	}

	rt.targetUs = p.ClampChannels()
	rt.interpolator.Start(rt.currentUs, rt.targetUs, p.TMs, p.InterpMode())
	rt.state = StateMoving
}

// syncWatchdog mirrors motion_task.c's post-receive reconciliation: the
// independent watchdog can force ESTOP or HOLD even without a new
// packet, but never downgrades an ESTOP the motion state already has.
func (rt *Runtime) syncWatchdog() {
	if rt.Watchdog == nil {
		return
	}
	switch rt.Watchdog.State() {
	case safety.StateEstop:
		rt.state = StateEstop
	case safety.StateTimeout, safety.StateHold:
		if rt.state != StateEstop {
			rt.state = StateHold
		}
	}
}

func (rt *Runtime) advance() {
	switch rt.state {
	case StateMoving:
		pose, complete := rt.interpolator.Tick()
		rt.currentUs = pose
		if complete {
			rt.state = StateIdle
		}
	case StateEstop:
		for i := range rt.currentUs {
			rt.currentUs[i] = posepkt.PWMNeutralUs
		}
	case StateHold, StateIdle:
		// hold current position, no change
	}
}

func (rt *Runtime) raise(f safety.Fault) {
	if rt.Faults != nil && f != 0 {
		rt.Faults.Set(f)
	}
}

func faultForDecodeErr(err error) safety.Fault {
	switch err {
	case posepkt.ErrBadMagic:
		return safety.FaultPacketMagic
	case posepkt.ErrBadVersion:
		return safety.FaultPacketVersion
	case posepkt.ErrBadCRC:
		return safety.FaultPacketCRC
	default:
		return 0
	}
}
