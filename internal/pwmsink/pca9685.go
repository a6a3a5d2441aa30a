// SPDX-License-Identifier: Apache-2.0

package pwmsink

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

// PCA9685 registers and MODE1/MODE2 bits (muscle_rtos/drivers/pca9685.c).
const (
	regMode1    = 0x00
	regMode2    = 0x01
	regLED0OnL  = 0x06
	regPrescale = 0xFE

	mode1Restart = 0x80
	mode1Sleep   = 0x10
	mode1AI      = 0x20

	mode2Outdrv = 0x04

	oscFreqHz  = 25_000_000
	tickMax    = 4096
	updateRate = 50 // Hz, fixed to match the 20 ms motion tick
	periodUs   = 20_000
)

// DefaultAddr is the PCA9685's factory-strap I²C address.
const DefaultAddr uint16 = 0x40

// PCA9685 drives a real PCA9685 16-channel PWM controller over I²C.
type PCA9685 struct {
	dev i2c.Dev
}

// OpenPCA9685 initializes the device at addr on bus: sleeps it, sets
// the 50 Hz prescale, re-enables auto-increment, waits for the
// oscillator, then configures totem-pole outputs.
func OpenPCA9685(bus i2c.Bus, addr uint16) (*PCA9685, error) {
	d := &PCA9685{dev: i2c.Dev{Bus: bus, Addr: addr}}

	mode1, err := d.readReg(regMode1)
	if err != nil {
		return nil, fmt.Errorf("pwmsink: read MODE1: %w", err)
	}
	if err := d.writeReg(regMode1, (mode1&^mode1Restart)|mode1Sleep); err != nil {
		return nil, fmt.Errorf("pwmsink: sleep before prescale: %w", err)
	}

	prescale := byte(oscFreqHz/(tickMax*updateRate) - 1)
	if err := d.writeReg(regPrescale, prescale); err != nil {
		return nil, fmt.Errorf("pwmsink: set prescale: %w", err)
	}

	if err := d.writeReg(regMode1, mode1AI); err != nil {
		return nil, fmt.Errorf("pwmsink: wake with auto-increment: %w", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := d.writeReg(regMode2, mode2Outdrv); err != nil {
		return nil, fmt.Errorf("pwmsink: set MODE2: %w", err)
	}

	return d, nil
}

func (d *PCA9685) readReg(reg byte) (byte, error) {
	var rx [1]byte
	if err := d.dev.Tx([]byte{reg}, rx[:]); err != nil {
		return 0, err
	}
	return rx[0], nil
}

func (d *PCA9685) writeReg(reg, val byte) error {
	return d.dev.Tx([]byte{reg, val}, nil)
}

// SetChannelUs implements Sink.
func (d *PCA9685) SetChannelUs(channel int, us uint16) error {
	if channel < 0 || channel >= posepkt.ChannelCount {
		return fmt.Errorf("pwmsink: channel %d out of range", channel)
	}
	us = posepkt.ClampUs(us)

	offTick := uint16((uint32(us) * tickMax) / periodUs)
	reg := byte(regLED0OnL) + byte(channel)*4
	data := []byte{
		reg,
		0, 0, // on = 0
		byte(offTick & 0xFF),
		byte(offTick >> 8),
	}
	return d.dev.Tx(data, nil)
}

// SetAllUs implements Sink.
func (d *PCA9685) SetAllUs(us [posepkt.ChannelCount]uint16) error {
	for ch, v := range us {
		if err := d.SetChannelUs(ch, v); err != nil {
			return err
		}
	}
	return nil
}

// Sleep implements Sink.
func (d *PCA9685) Sleep() error {
	mode1, err := d.readReg(regMode1)
	if err != nil {
		return err
	}
	return d.writeReg(regMode1, mode1|mode1Sleep)
}

// Wake implements Sink.
func (d *PCA9685) Wake() error {
	mode1, err := d.readReg(regMode1)
	if err != nil {
		return err
	}
	if err := d.writeReg(regMode1, mode1&^mode1Sleep); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)

	if mode1&mode1Restart != 0 {
		return d.writeReg(regMode1, (mode1&^mode1Sleep)|mode1Restart)
	}
	return nil
}

// Close is a no-op: the i2c.Bus is owned by the caller.
func (d *PCA9685) Close() error { return nil }

var _ Sink = (*PCA9685)(nil)
