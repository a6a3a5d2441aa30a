// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/brindlebot/walkctl/internal/pipeline"
	"github.com/brindlebot/walkctl/internal/rangesensor"
	"github.com/brindlebot/walkctl/internal/scan"
	"github.com/brindlebot/walkctl/pkg/posepkt"
)

// lineHandler adapts the pipeline, producer, scan controller and range
// sensor to internal/lineserial.Handler. Direct SERVO/SERVOS/MOVE/SCAN
// commands bypass the pipeline's queue and sequence playback, mirroring
// serial_control.cpp talking straight to the PWM driver rather than
// through the task manager. Sequence numbers still come from the
// pipeline's own counter, since both write to the same ring producer.
type lineHandler struct {
	pl       *pipeline.Pipeline
	producer *pipeline.Producer
	scanCtl  *scan.Controller
	sensor   rangesensor.Sensor
}

func newLineHandler(pl *pipeline.Pipeline, producer *pipeline.Producer, scanCtl *scan.Controller, sensor rangesensor.Sensor) *lineHandler {
	return &lineHandler{pl: pl, producer: producer, scanCtl: scanCtl, sensor: sensor}
}

func (h *lineHandler) SetServo(channel int, us uint16) error {
	pose := h.pl.CurrentPose()
	pose[channel] = posepkt.ClampUs(us)
	return h.pushPose(pose, 0)
}

func (h *lineHandler) SetServos(us [posepkt.ChannelCount]uint16) error {
	return h.pushPose(us, 0)
}

func (h *lineHandler) Move(tMs uint32, us [posepkt.ChannelCount]uint16) error {
	return h.pushPose(us, tMs)
}

func (h *lineHandler) SetScan(us uint16) error {
	pose := h.pl.CurrentPose()
	pose[scan.Channel] = posepkt.ClampUs(us)
	return h.pushPose(pose, 0)
}

func (h *lineHandler) pushPose(us [posepkt.ChannelCount]uint16, tMs uint32) error {
	pkt := posepkt.New(h.pl.NextSeq())
	pkt.ServoUs = us
	pkt.TMs = tMs
	pkt.Flags = posepkt.FlagClampEnable
	return h.producer.Send(pkt)
}

func (h *lineHandler) Estop() error  { return h.pl.Estop() }
func (h *lineHandler) Resume() error { return h.pl.ClearEstop() }

func (h *lineHandler) Status() string {
	if h.pl.IsEstop() {
		return "estop"
	}
	return h.pl.Mode().String()
}

func (h *lineHandler) Distance() (int, error) {
	if h.sensor == nil {
		return -1, nil
	}
	mm, status, err := h.sensor.ReadRange()
	if err != nil || status != rangesensor.StatusOK {
		return -1, err
	}
	return int(mm), nil
}
