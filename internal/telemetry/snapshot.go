// SPDX-License-Identifier: Apache-2.0

// Package telemetry reports the brain daemon's running totals in the
// shape the WebSocket surface publishes. Grounded on
// brain_daemon/json_protocol.cpp's createTelemetryResponse.
package telemetry

import "time"

// Snapshot is one point-in-time reading of the daemon's vitals.
type Snapshot struct {
	UptimeS     uint32
	LoopHz      float64
	PacketsSent uint32
	State       string
}

// Tracker accumulates the counters a Snapshot reports.
type Tracker struct {
	startedAt   time.Time
	packetsSent uint32
	tickCount   uint64
	tickWindow  time.Time
}

// NewTracker starts a Tracker with its clock zeroed at now.
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{startedAt: now, tickWindow: now}
}

// RecordPacketSent increments the packet counter.
func (t *Tracker) RecordPacketSent() { t.packetsSent++ }

// RecordTick increments the tick counter used to derive LoopHz.
func (t *Tracker) RecordTick() { t.tickCount++ }

// Snapshot builds a Snapshot from the tracker's running totals, with
// LoopHz computed as ticks-per-second since NewTracker (or the last
// ResetLoopHz).
func (t *Tracker) Snapshot(state string) Snapshot {
	elapsed := time.Since(t.tickWindow).Seconds()
	loopHz := 0.0
	if elapsed > 0 {
		loopHz = float64(t.tickCount) / elapsed
	}
	return Snapshot{
		UptimeS:     uint32(time.Since(t.startedAt).Seconds()),
		LoopHz:      loopHz,
		PacketsSent: t.packetsSent,
		State:       state,
	}
}

// ResetLoopHz restarts the tick-rate window, so LoopHz reflects recent
// activity rather than the lifetime average.
func (t *Tracker) ResetLoopHz() {
	t.tickCount = 0
	t.tickWindow = time.Now()
}
