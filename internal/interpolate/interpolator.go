// SPDX-License-Identifier: Apache-2.0

// Package interpolate advances a pose from a start set of pulse widths
// toward a target over a fixed duration, in either float or Q16.16
// fixed-point mode, ticked once per motion-runtime cycle.
package interpolate

import "github.com/brindlebot/walkctl/pkg/posepkt"

// TickMS is the fixed motion-runtime period (§4.8): 1000/50Hz.
const TickMS = 20

// Mode selects the arithmetic used to compute the interpolation factor.
type Mode = posepkt.InterpMode

const (
	ModeFloat = posepkt.InterpFloat
	ModeQ16   = posepkt.InterpQ16
)

// Interpolator holds one in-flight move's start/target pose and
// elapsed time. The zero value is inactive.
type Interpolator struct {
	start    [posepkt.ChannelCount]uint16
	target   [posepkt.ChannelCount]uint16
	duration uint32
	elapsed  uint32
	mode     Mode
	active   bool
}

// Start begins a new move from current to target over durationMS,
// clamping a zero duration to 1ms so the first Tick always completes it
// rather than dividing by zero.
func (ip *Interpolator) Start(current, target [posepkt.ChannelCount]uint16, durationMS uint32, mode Mode) {
	ip.start = current
	ip.target = target
	if durationMS == 0 {
		durationMS = 1
	}
	ip.duration = durationMS
	ip.elapsed = 0
	ip.mode = mode
	ip.active = true
}

// Active reports whether a move is in progress.
func (ip *Interpolator) Active() bool { return ip.active }

// Tick advances elapsed time by TickMS and returns the pose for this
// step along with whether the move is now complete. Calling Tick after
// completion is a no-op that keeps returning the target pose, complete.
func (ip *Interpolator) Tick() (out [posepkt.ChannelCount]uint16, complete bool) {
	if !ip.active {
		return ip.target, true
	}

	ip.elapsed += TickMS
	if ip.elapsed >= ip.duration {
		ip.active = false
		return ip.target, true
	}

	switch ip.mode {
	case ModeQ16:
		return ip.tickQ16(), false
	default:
		return ip.tickFloat(), false
	}
}

func (ip *Interpolator) tickFloat() [posepkt.ChannelCount]uint16 {
	t := float64(ip.elapsed) / float64(ip.duration)
	var out [posepkt.ChannelCount]uint16
	for i := range out {
		start := float64(ip.start[i])
		target := float64(ip.target[i])
		out[i] = uint16(start + (target-start)*t)
	}
	return out
}

func (ip *Interpolator) tickQ16() [posepkt.ChannelCount]uint16 {
	tQ16 := (uint32(ip.elapsed) << 16) / ip.duration
	var out [posepkt.ChannelCount]uint16
	for i := range out {
		start := int32(ip.start[i])
		target := int32(ip.target[i])
		delta := target - start
		interp := start + int32((int64(delta)*int64(tQ16))>>16)
		out[i] = uint16(interp)
	}
	return out
}

// Abort cancels the in-flight move without producing a final pose;
// the caller is responsible for deciding what pose to hold instead.
func (ip *Interpolator) Abort() {
	ip.active = false
}
