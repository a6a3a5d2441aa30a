// SPDX-License-Identifier: Apache-2.0

package interpolate

import (
	"testing"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

func uniform(v uint16) [posepkt.ChannelCount]uint16 {
	var out [posepkt.ChannelCount]uint16
	for i := range out {
		out[i] = v
	}
	return out
}

func TestTickReachesTargetAtDuration(t *testing.T) {
	for _, mode := range []Mode{ModeFloat, ModeQ16} {
		var ip Interpolator
		ip.Start(uniform(1000), uniform(2000), 100, mode)

		var last [posepkt.ChannelCount]uint16
		complete := false
		for i := 0; i < 5 && !complete; i++ {
			last, complete = ip.Tick()
		}

		if !complete {
			t.Fatalf("mode %v: move did not complete within 100ms/20ms ticks", mode)
		}
		if last != uniform(2000) {
			t.Fatalf("mode %v: final pose = %v, want %v", mode, last, uniform(2000))
		}
		if ip.Active() {
			t.Fatalf("mode %v: Active() = true after completion", mode)
		}
	}
}

func TestTickIsMonotonicTowardTarget(t *testing.T) {
	var ip Interpolator
	ip.Start(uniform(1000), uniform(2000), 100, ModeFloat)

	prev := uint16(1000)
	for i := 0; i < 10; i++ {
		out, complete := ip.Tick()
		if out[0] < prev {
			t.Fatalf("channel 0 went backwards: %d -> %d", prev, out[0])
		}
		prev = out[0]
		if complete {
			break
		}
	}
}

func TestZeroDurationCompletesOnFirstTick(t *testing.T) {
	var ip Interpolator
	ip.Start(uniform(1000), uniform(1500), 0, ModeFloat)

	out, complete := ip.Tick()
	if !complete {
		t.Fatalf("zero-duration move did not complete on first tick")
	}
	if out != uniform(1500) {
		t.Fatalf("out = %v, want %v", out, uniform(1500))
	}
}

func TestTickAfterCompletionIsNoOp(t *testing.T) {
	var ip Interpolator
	ip.Start(uniform(1000), uniform(1500), 20, ModeFloat)

	_, complete := ip.Tick()
	if !complete {
		t.Fatalf("expected completion within one 20ms tick for a 20ms move")
	}

	out, complete := ip.Tick()
	if !complete || out != uniform(1500) {
		t.Fatalf("Tick() after completion = (%v, %v), want (%v, true)", out, complete, uniform(1500))
	}
}

func TestAbortStopsFurtherProgress(t *testing.T) {
	var ip Interpolator
	ip.Start(uniform(1000), uniform(2000), 1000, ModeFloat)
	ip.Tick()
	ip.Abort()

	if ip.Active() {
		t.Fatalf("Active() = true after Abort()")
	}
}

func TestFloatAndQ16AgreeWithinRounding(t *testing.T) {
	var ipFloat, ipQ16 Interpolator
	ipFloat.Start(uniform(1000), uniform(2000), 200, ModeFloat)
	ipQ16.Start(uniform(1000), uniform(2000), 200, ModeQ16)

	for i := 0; i < 10; i++ {
		of, cf := ipFloat.Tick()
		oq, cq := ipQ16.Tick()
		if cf != cq {
			t.Fatalf("tick %d: completion mismatch float=%v q16=%v", i, cf, cq)
		}
		diff := int(of[0]) - int(oq[0])
		if diff < -2 || diff > 2 {
			t.Fatalf("tick %d: float=%d q16=%d diverge by more than rounding", i, of[0], oq[0])
		}
	}
}
