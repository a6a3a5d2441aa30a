// SPDX-License-Identifier: Apache-2.0

package safety

import (
	"context"
	"sync/atomic"
	"time"
)

// CheckPeriod is how often the watchdog goroutine re-evaluates elapsed
// time since the last feed: ten times per HeartbeatTimeout.
const CheckPeriod = 25 * time.Millisecond

// HeartbeatTimeout is how long the muscle domain tolerates silence
// from the brain domain before declaring a timeout.
const HeartbeatTimeout = 250 * time.Millisecond

// State is the watchdog's independent safety state.
type State int32

const (
	StateNormal State = iota
	StateTimeout
	StateHold
	StateEstop
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateTimeout:
		return "timeout"
	case StateHold:
		return "hold"
	case StateEstop:
		return "estop"
	default:
		return "unknown"
	}
}

// Watchdog tracks the last heartbeat/packet arrival and derives NORMAL/
// TIMEOUT/HOLD/ESTOP independently of the motion runtime's own state,
// mirroring the original's separately scheduled FreeRTOS task.
type Watchdog struct {
	state        atomic.Int32
	lastFeedNano atomic.Int64
	faults       *Faults

	OnTimeout func()
	OnEstop   func()
}

// NewWatchdog constructs a Watchdog in NORMAL state, fed as of now.
func NewWatchdog(faults *Faults) *Watchdog {
	w := &Watchdog{faults: faults}
	w.state.Store(int32(StateNormal))
	w.lastFeedNano.Store(nowNano())
	return w
}

// Feed records a heartbeat or valid packet arrival. If the watchdog was
// in TIMEOUT or HOLD, it returns to NORMAL and clears the heartbeat
// fault; ESTOP is not cleared by feeding alone (§4.13/Open Question c).
func (w *Watchdog) Feed() {
	w.lastFeedNano.Store(nowNano())

	for {
		cur := State(w.state.Load())
		if cur != StateTimeout && cur != StateHold {
			return
		}
		if w.state.CompareAndSwap(int32(cur), int32(StateNormal)) {
			if w.faults != nil {
				w.faults.Clear(FaultHeartbeatTimeout)
			}
			return
		}
	}
}

// SignalEstop immediately forces ESTOP and raises the fault flag.
func (w *Watchdog) SignalEstop() {
	w.state.Store(int32(StateEstop))
	if w.faults != nil {
		w.faults.Set(FaultEstopActive)
	}
	if w.OnEstop != nil {
		w.OnEstop()
	}
}

// ClearEstop attempts to leave ESTOP: it only succeeds if a heartbeat
// has arrived within HeartbeatTimeout, otherwise it drops to HOLD and
// reports failure — the caller must keep the heartbeat alive first.
func (w *Watchdog) ClearEstop() bool {
	if State(w.state.Load()) != StateEstop {
		return false
	}

	if time.Duration(nowNano()-w.lastFeedNano.Load()) < HeartbeatTimeout {
		w.state.Store(int32(StateNormal))
		if w.faults != nil {
			w.faults.Clear(FaultEstopActive)
		}
		return true
	}

	w.state.Store(int32(StateHold))
	return false
}

// State returns the current watchdog state.
func (w *Watchdog) State() State { return State(w.state.Load()) }

// IsMotionAllowed reports whether the watchdog is in NORMAL state.
func (w *Watchdog) IsMotionAllowed() bool { return w.State() == StateNormal }

// MsSinceFeed returns milliseconds elapsed since the last Feed.
func (w *Watchdog) MsSinceFeed() int64 {
	return (nowNano() - w.lastFeedNano.Load()) / int64(time.Millisecond)
}

// Check evaluates elapsed time since the last feed and transitions
// NORMAL -> TIMEOUT -> HOLD once HeartbeatTimeout has passed. It is
// meant to be called on CheckPeriod from the watchdog goroutine's own
// ticker; ESTOP is left untouched until explicitly cleared.
func (w *Watchdog) Check() {
	cur := w.State()
	if cur == StateEstop {
		return
	}

	elapsed := time.Duration(nowNano() - w.lastFeedNano.Load())
	if elapsed <= HeartbeatTimeout {
		return
	}

	if cur == StateNormal {
		w.state.Store(int32(StateTimeout))
		if w.faults != nil {
			w.faults.Set(FaultHeartbeatTimeout)
		}
		if w.OnTimeout != nil {
			w.OnTimeout()
		}
	}

	if State(w.state.Load()) == StateTimeout {
		w.state.Store(int32(StateHold))
	}
}

// Run blocks, calling Check every CheckPeriod until ctx is done. It is
// meant to run on its own locked OS thread at elevated priority, ahead
// of the motion goroutine, mirroring the original's highest-priority
// FreeRTOS watchdog task.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(CheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

func nowNano() int64 { return time.Now().UnixNano() }
