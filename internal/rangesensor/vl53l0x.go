// SPDX-License-Identifier: Apache-2.0

package rangesensor

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// VL53L0X registers (distance_sensor.cpp).
const (
	regIdentificationModelID = 0xC0
	regSysrangeStart         = 0x00
	regResultRangeStatus     = 0x14
	regSystemInterruptClear  = 0x0B

	expectedModelID = 0xEE
)

// DefaultAddr is the VL53L0X's factory-strap I²C address.
const DefaultAddr uint16 = 0x29

// VL53L0X drives a real VL53L0X time-of-flight ranging sensor.
type VL53L0X struct {
	dev          i2c.Dev
	lastDistance uint16
}

// OpenVL53L0X verifies the device's model ID and runs the minimal
// power-up sequence from distance_sensor.cpp's init().
func OpenVL53L0X(bus i2c.Bus, addr uint16) (*VL53L0X, error) {
	s := &VL53L0X{dev: i2c.Dev{Bus: bus, Addr: addr}, lastDistance: MaxMM}

	modelID, err := s.readReg8(regIdentificationModelID)
	if err != nil {
		return nil, fmt.Errorf("rangesensor: read model id: %w", err)
	}
	if modelID != expectedModelID {
		return nil, fmt.Errorf("rangesensor: unexpected model id 0x%02X (want 0x%02X)", modelID, expectedModelID)
	}

	for _, step := range [][2]byte{{0x88, 0x00}, {0x80, 0x01}, {0xFF, 0x01}, {0x00, 0x00}} {
		if err := s.writeReg8(step[0], step[1]); err != nil {
			return nil, fmt.Errorf("rangesensor: init sequence: %w", err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	for _, step := range [][2]byte{{0x00, 0x01}, {0xFF, 0x00}, {0x80, 0x00}} {
		if err := s.writeReg8(step[0], step[1]); err != nil {
			return nil, fmt.Errorf("rangesensor: init sequence: %w", err)
		}
	}

	return s, nil
}

func (s *VL53L0X) readReg8(reg byte) (byte, error) {
	var rx [1]byte
	if err := s.dev.Tx([]byte{reg}, rx[:]); err != nil {
		return 0, err
	}
	return rx[0], nil
}

func (s *VL53L0X) readReg16(reg byte) (uint16, error) {
	var rx [2]byte
	if err := s.dev.Tx([]byte{reg}, rx[:]); err != nil {
		return 0, err
	}
	return uint16(rx[0])<<8 | uint16(rx[1]), nil
}

func (s *VL53L0X) writeReg8(reg, val byte) error {
	return s.dev.Tx([]byte{reg, val}, nil)
}

// ReadRange implements Sensor: starts a single-shot measurement, polls
// for completion and result-ready in 1 ms steps up to TimeoutMS, reads
// the range, clears the interrupt, and validates against [MinMM, MaxMM].
func (s *VL53L0X) ReadRange() (uint16, Status, error) {
	if err := s.writeReg8(regSysrangeStart, 0x01); err != nil {
		return s.lastDistance, StatusError, err
	}

	done, err := s.pollUntil(func() (bool, error) {
		v, err := s.readReg8(regSysrangeStart)
		return v&0x01 == 0, err
	})
	if err != nil {
		return s.lastDistance, StatusError, err
	}
	if !done {
		return s.lastDistance, StatusTimeout, nil
	}

	done, err = s.pollUntil(func() (bool, error) {
		v, err := s.readReg8(regResultRangeStatus)
		return v&0x01 != 0, err
	})
	if err != nil {
		return s.lastDistance, StatusError, err
	}
	if !done {
		return s.lastDistance, StatusTimeout, nil
	}

	mm, err := s.readReg16(regResultRangeStatus + 10)
	if err != nil {
		return s.lastDistance, StatusError, err
	}
	_ = s.writeReg8(regSystemInterruptClear, 0x01)

	if mm < MinMM || mm > MaxMM {
		return s.lastDistance, StatusOutOfRange, nil
	}

	s.lastDistance = mm
	return mm, StatusOK, nil
}

// pollUntil calls cond every 1 ms until it reports done, returns an
// error, or TimeoutMS elapses, mirroring the original's countdown loop.
func (s *VL53L0X) pollUntil(cond func() (done bool, err error)) (bool, error) {
	for i := 0; i < TimeoutMS; i++ {
		done, err := cond()
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		time.Sleep(time.Millisecond)
	}
	return false, nil
}

// Close is a no-op: the i2c.Bus is owned by the caller.
func (s *VL53L0X) Close() error { return nil }

var _ Sensor = (*VL53L0X)(nil)
