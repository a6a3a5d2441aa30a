// SPDX-License-Identifier: Apache-2.0

// Package pwmsink provides the capability interface the motion runtime
// drives servo pulses through, plus a real PCA9685 I²C implementation
// and an in-memory simulation for tests and --sim runs. This replaces
// the original's direct pca9685_set_pwm_us() calls from the motion
// task with an interface the runtime can be handed either
// implementation of without caring which.
package pwmsink

import "github.com/brindlebot/walkctl/pkg/posepkt"

// Sink drives one channel's worth of PWM pulse width at a time.
type Sink interface {
	// SetChannelUs commands channel (0..posepkt.ChannelCount-1) to the
	// given pulse width in microseconds. Implementations clamp
	// internally; callers should already have clamped via posepkt but
	// a sink must never trust that.
	SetChannelUs(channel int, us uint16) error

	// SetAllUs commands every channel from a full pose at once.
	SetAllUs(us [posepkt.ChannelCount]uint16) error

	// Sleep puts the device into low-power mode (all outputs held at
	// their last value, oscillator stopped where supported).
	Sleep() error

	// Wake brings the device back out of Sleep.
	Wake() error

	// Close releases any underlying bus handle.
	Close() error
}
