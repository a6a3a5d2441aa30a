// SPDX-License-Identifier: Apache-2.0

// Package obstacle turns scan data into a reaction: which zone has
// something too close, how severe it is, and what the legs should do
// about it, plus a rate-limited eye mood/look update. Grounded
// verbatim on archive/brain_daemon_skeleton/obstacle_avoidance.cpp.
package obstacle

import (
	"strconv"
	"time"

	"github.com/brindlebot/walkctl/internal/scan"
)

// Action is the discrete reaction a Reaction recommends.
type Action int

const (
	ActionNone Action = iota
	ActionSlowDown
	ActionTurnLeft
	ActionTurnRight
	ActionStop
	ActionBackup
)

func (a Action) String() string {
	switch a {
	case ActionSlowDown:
		return "slow_down"
	case ActionTurnLeft:
		return "turn_left"
	case ActionTurnRight:
		return "turn_right"
	case ActionStop:
		return "stop"
	case ActionBackup:
		return "backup"
	default:
		return "none"
	}
}

// Reaction is the latest policy evaluation.
type Reaction struct {
	ObstacleDetected bool
	Direction        string // "left", "front", "right"
	DistanceMM       int
	Severity         float64 // 0.0 = far, 1.0 = very close
	Action           Action
}

// zone angle bounds in degrees, centered on the scan servo's 90°
// midpoint (so 0° here means "90° on the servo"). The three zones are
// half-open/closed the same way as the original — left [-60,-20),
// front [-20,20], right (20,60] — so a reading at exactly -20 or +20
// belongs to front alone, never double-counted into the adjacent side
// zone.
const (
	leftMin, leftMax   = -60, -20
	frontMin, frontMax = -20, 20
	rightMin, rightMax = 20, 60
)

// noReading marks a zone with no valid sample, standing in for the
// original's 9999mm sentinel.
const noReading = 1 << 30

// EyeNotifier is the minimal eye-service surface the policy needs.
// Satisfied by internal/eyeclient.Client.
type EyeNotifier interface {
	SendEvent(json string) error
}

// Policy evaluates a Controller's scan data against three distance
// thresholds and recommends a reaction, rate-limiting how often it
// pokes the eye service.
type Policy struct {
	scan *scan.Controller
	eyes EyeNotifier

	enabled bool

	warnMM     int
	stopMM     int
	criticalMM int

	reaction Reaction

	lastEyeUpdate time.Time
	eyeRateLimit  time.Duration
}

// New builds a Policy reading from scanCtl and, if eyes is non-nil,
// emitting mood/look events through it.
func New(scanCtl *scan.Controller, eyes EyeNotifier) *Policy {
	return &Policy{
		scan:         scanCtl,
		eyes:         eyes,
		enabled:      true,
		warnMM:       400,
		stopMM:       200,
		criticalMM:   100,
		eyeRateLimit: 200 * time.Millisecond,
	}
}

// SetThresholds replaces the warn/stop/critical distance thresholds.
func (p *Policy) SetThresholds(warnMM, stopMM, criticalMM int) {
	p.warnMM = warnMM
	p.stopMM = stopMM
	p.criticalMM = criticalMM
}

// SetEnabled toggles whether Tick evaluates at all.
func (p *Policy) SetEnabled(enabled bool) { p.enabled = enabled }

// Enabled reports whether the policy is active.
func (p *Policy) Enabled() bool { return p.enabled }

// Reaction returns the most recent evaluation.
func (p *Policy) Reaction() Reaction { return p.reaction }

// HasObstacle reports whether the most recent evaluation found
// something inside the warn threshold.
func (p *Policy) HasObstacle() bool { return p.reaction.ObstacleDetected }

// Tick re-evaluates all three zones against the current scan data.
// Severity and action are driven off the single closest reading across
// all zones (not per-zone), and direction picks front whenever it owns
// that closest reading — even on a tie against a side zone — otherwise
// whichever side is nearer, matching obstacle_avoidance.cpp's
// front_min == closest / left_min < right_min precedence.
func (p *Policy) Tick() error {
	if !p.enabled || p.scan == nil {
		p.reaction = Reaction{}
		return nil
	}

	leftC := p.zoneClosest(leftMin, leftMax-1)
	frontC := p.zoneClosest(frontMin, frontMax)
	rightC := p.zoneClosest(rightMin+1, rightMax)

	closest := leftC
	if frontC < closest {
		closest = frontC
	}
	if rightC < closest {
		closest = rightC
	}
	if closest >= noReading || closest > p.warnMM {
		p.reaction = Reaction{}
		return nil
	}

	severity := p.severity(closest)
	direction := "right"
	switch {
	case frontC == closest:
		direction = "front"
	case leftC < rightC:
		direction = "left"
	}

	p.reaction = Reaction{
		ObstacleDetected: true,
		Direction:        direction,
		DistanceMM:       closest,
		Severity:         severity,
		Action:           p.actionFor(direction, severity),
	}

	return p.updateEyes()
}

// zoneClosest finds the nearest reading in [angleMin, angleMax]
// (measured relative to the servo's 90° center), or noReading if the
// zone has nothing.
func (p *Policy) zoneClosest(angleMin, angleMax int) int {
	closest := noReading
	for angle := angleMin; angle <= angleMax; angle++ {
		d := p.scan.DistanceAtAngle(angle+90, 0)
		if d > 0 && d < closest {
			closest = d
		}
	}
	return closest
}

// severity maps a distance in millimeters to a 0..1 severity: at or
// inside the critical threshold it saturates at 1.0, between critical
// and stop it ramps 0.7-1.0, between stop and warn it ramps 0.3-0.7.
func (p *Policy) severity(distanceMM int) float64 {
	switch {
	case distanceMM <= p.criticalMM:
		return 1.0
	case distanceMM <= p.stopMM:
		frac := float64(p.stopMM-distanceMM) / float64(p.stopMM-p.criticalMM)
		return 0.7 + 0.3*frac
	case distanceMM <= p.warnMM:
		frac := float64(p.warnMM-distanceMM) / float64(p.warnMM-p.stopMM)
		return 0.3 + 0.4*frac
	default:
		return 0.0
	}
}

// actionFor recommends a reaction for the given zone and severity: the
// front zone backs up when critical, stops when merely stop-level, and
// otherwise just slows down; the side zones turn away.
func (p *Policy) actionFor(zoneName string, severity float64) Action {
	switch zoneName {
	case "front":
		switch {
		case severity >= 1.0:
			return ActionBackup
		case severity >= 0.7:
			return ActionStop
		default:
			return ActionSlowDown
		}
	case "left":
		return ActionTurnRight
	case "right":
		return ActionTurnLeft
	default:
		return ActionNone
	}
}

// severityToMood maps severity onto the eye service's three moods.
func severityToMood(severity float64) string {
	switch {
	case severity >= 0.8:
		return "angry"
	case severity >= 0.5:
		return "suspicious"
	default:
		return "neutral"
	}
}

func (p *Policy) updateEyes() error {
	if p.eyes == nil {
		return nil
	}
	if time.Since(p.lastEyeUpdate) < p.eyeRateLimit {
		return nil
	}
	p.lastEyeUpdate = time.Now()

	mood := severityToMood(p.reaction.Severity)
	if err := p.eyes.SendEvent(`{"v":"3.1","type":"eyes","msg":{"cmd":"mood","mood":"` + mood + `"}}`); err != nil {
		return err
	}

	lookX := 0.0
	switch p.reaction.Direction {
	case "left":
		lookX = -0.6
	case "right":
		lookX = 0.6
	}
	lookStr := strconv.FormatFloat(lookX, 'f', 1, 64)
	look := `{"v":"3.1","type":"eyes","msg":{"cmd":"look","L":{"x":` + lookStr +
		`,"y":0},"R":{"x":` + lookStr + `,"y":0}}}`
	return p.eyes.SendEvent(look)
}
