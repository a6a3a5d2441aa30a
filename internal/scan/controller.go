// SPDX-License-Identifier: Apache-2.0

// Package scan runs an autonomous bidirectional sweep of the scan
// servo (channel 12), dwelling at each angle before trusting a range
// reading, and serves aggregate queries over the points it collects.
// Grounded verbatim on brain_linux/src/scan_controller.cpp.
package scan

import (
	"sync"
	"time"

	"github.com/brindlebot/walkctl/internal/pwmsink"
	"github.com/brindlebot/walkctl/internal/rangesensor"
	"github.com/brindlebot/walkctl/pkg/posepkt"
)

// Channel is the pose channel the scan servo rides on.
const Channel = 12

// centerDeg is the angle the servo returns to when a sweep stops.
const centerDeg = 90

// ScanPoint is one (angle, distance) sample. DistanceMM is -1 if the
// sensor errored or timed out at that angle.
type ScanPoint struct {
	AngleDeg   int
	DistanceMM int
	Timestamp  time.Time
}

// Controller owns one scan servo and one range sensor and sweeps them
// together. It is not a full Runtime: callers drive it with Tick from
// whatever loop also runs the rest of the brain side.
type Controller struct {
	sink   pwmsink.Sink
	sensor rangesensor.Sensor
	onPoint func(ScanPoint)

	mu sync.Mutex

	profile Profile
	running bool

	currentAngle int
	direction    int

	lastStepAt   time.Time
	dwellStartAt time.Time
	dwelling     bool

	data []ScanPoint
}

// New builds a Controller driving sink's scan channel and reading from
// sensor, using DefaultProfile until SetProfile changes it.
func New(sink pwmsink.Sink, sensor rangesensor.Sensor) *Controller {
	return &Controller{
		sink:         sink,
		sensor:       sensor,
		profile:      DefaultProfile(),
		currentAngle: centerDeg,
		direction:    1,
	}
}

// SetProfile replaces the sweep profile. Safe to call while stopped;
// calling it mid-sweep takes effect on the next Tick.
func (c *Controller) SetProfile(p Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = p
}

// Profile returns the active sweep profile.
func (c *Controller) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// SetDataCallback installs a function called once per captured point,
// in addition to it being appended to ScanData.
func (c *Controller) SetDataCallback(cb func(ScanPoint)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPoint = cb
}

// Start begins a sweep from the profile's minimum angle. A no-op if
// already running.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.currentAngle = c.profile.MinDeg
	c.direction = 1
	c.data = nil
	c.dwelling = true
	now := time.Now()
	c.lastStepAt = now
	c.dwellStartAt = now
	angle := c.currentAngle
	c.mu.Unlock()

	return c.moveServo(angle)
}

// Stop halts the sweep and recenters the servo. A no-op if not
// running.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.currentAngle = centerDeg
	c.mu.Unlock()

	return c.moveServo(centerDeg)
}

// IsRunning reports whether a sweep is in progress.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// CurrentAngle returns the servo's current commanded angle.
func (c *Controller) CurrentAngle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentAngle
}

// Tick advances the sweep by one step: during dwell it waits out the
// settle time then takes a reading, otherwise it checks whether enough
// time has passed to step to the next angle. Call it from the main
// brain loop; it returns immediately when not running.
func (c *Controller) Tick() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	now := time.Now()
	periodMs := 1000 / c.profile.RateHz

	if c.dwelling {
		if time.Since(c.dwellStartAt) < time.Duration(c.profile.DwellMs)*time.Millisecond {
			c.mu.Unlock()
			return nil
		}
		c.dwelling = false
		angle := c.currentAngle
		c.mu.Unlock()

		return c.sampleAt(angle, now)
	}

	if now.Sub(c.lastStepAt) < time.Duration(periodMs)*time.Millisecond {
		c.mu.Unlock()
		return nil
	}

	c.currentAngle += c.direction * c.profile.StepDeg
	if c.currentAngle > c.profile.MaxDeg {
		c.currentAngle = c.profile.MaxDeg
		c.direction = -1
	} else if c.currentAngle < c.profile.MinDeg {
		c.currentAngle = c.profile.MinDeg
		c.direction = 1
	}
	angle := c.currentAngle
	c.dwellStartAt = now
	c.dwelling = true
	c.lastStepAt = now
	c.mu.Unlock()

	return c.moveServo(angle)
}

func (c *Controller) sampleAt(angle int, now time.Time) error {
	distance := -1
	if c.sensor != nil {
		mm, status, err := c.sensor.ReadRange()
		if err == nil && status == rangesensor.StatusOK {
			distance = int(mm)
		}
	}

	point := ScanPoint{AngleDeg: angle, DistanceMM: distance, Timestamp: now}

	c.mu.Lock()
	replaced := false
	for i := range c.data {
		if c.data[i].AngleDeg == angle {
			c.data[i] = point
			replaced = true
			break
		}
	}
	if !replaced {
		c.data = append(c.data, point)
	}
	cb := c.onPoint
	c.mu.Unlock()

	if cb != nil {
		cb(point)
	}
	return nil
}

func (c *Controller) moveServo(angleDeg int) error {
	if c.sink == nil {
		return nil
	}
	return c.sink.SetChannelUs(Channel, AngleToServoUs(angleDeg))
}

// AngleToServoUs maps a 0-180° sweep angle onto the pulse-width range,
// 0° = PWMMinUs, 180° = PWMMaxUs, linearly in between.
func AngleToServoUs(angleDeg int) uint16 {
	us := 500 + angleDeg*2000/180
	return posepkt.ClampUs(uint16(us))
}

// ScanData returns a copy of the points collected since the last
// ClearScanData (or Start, which clears implicitly): one per angle, a
// later reading at the same angle having replaced the earlier one.
func (c *Controller) ScanData() []ScanPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScanPoint, len(c.data))
	copy(out, c.data)
	return out
}

// ClearScanData discards every collected point.
func (c *Controller) ClearScanData() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// ClosestDistance returns the smallest positive distance seen, or -1
// if no valid reading exists.
func (c *Controller) ClosestDistance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	closest := -1
	for _, p := range c.data {
		if p.DistanceMM > 0 && (closest == -1 || p.DistanceMM < closest) {
			closest = p.DistanceMM
		}
	}
	return closest
}

// ClosestAngle returns the angle at which the closest positive
// distance was seen, or 90 if no valid reading exists.
func (c *Controller) ClosestAngle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	closestDist := -1
	closestAngle := centerDeg
	for _, p := range c.data {
		if p.DistanceMM > 0 && (closestDist == -1 || p.DistanceMM < closestDist) {
			closestDist = p.DistanceMM
			closestAngle = p.AngleDeg
		}
	}
	return closestAngle
}

// DistanceAtAngle returns the distance reading closest to angleDeg
// within toleranceDeg, or -1 if none is within tolerance.
func (c *Controller) DistanceAtAngle(angleDeg, toleranceDeg int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	best, bestDiff := -1, toleranceDeg+1
	for _, p := range c.data {
		if d := abs(p.AngleDeg - angleDeg); d < bestDiff {
			best, bestDiff = p.DistanceMM, d
		}
	}
	return best
}

// AverageDistanceInCone returns the mean of every positive reading
// whose angle falls within coneWidthDeg/2 of coneCenterDeg, or -1 if
// none qualify.
func (c *Controller) AverageDistanceInCone(coneCenterDeg, coneWidthDeg int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	half := coneWidthDeg / 2
	sum, count := 0, 0
	for _, p := range c.data {
		if p.DistanceMM > 0 && p.AngleDeg >= coneCenterDeg-half && p.AngleDeg <= coneCenterDeg+half {
			sum += p.DistanceMM
			count++
		}
	}
	if count == 0 {
		return -1
	}
	return sum / count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
