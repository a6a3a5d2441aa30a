// SPDX-License-Identifier: Apache-2.0

package posepkt

// Magic and protocol version. Both are fixed for the lifetime of this
// wire format; a version bump gets a new magic or a new minor, not a
// silent reinterpretation of existing fields.
const (
	Magic     uint16 = 0xB31A
	VerMajor  uint8  = 3
	VerMinor  uint8  = 1
	WireSize         = 42
)

// Flags bitfield (PosePacket.Flags).
const (
	FlagEstop       uint16 = 1 << 0 // emergency stop, latches the muscle side
	FlagHold        uint16 = 1 << 1 // freeze at current pose, non-latching
	FlagClampEnable uint16 = 1 << 2 // advisory: the muscle side always clamps regardless
	FlagInterpQ16   uint16 = 1 << 3 // Q16.16 fixed-point interpolation instead of float
	flagReserved4   uint16 = 1 << 4
	FlagScanEnable  uint16 = 1 << 5 // scan channel (12) is under sweep control
)

// Packet is the decoded form of the 42-byte wire PosePacket.
type Packet struct {
	Seq     uint32
	TMs     uint32
	Flags   uint16
	ServoUs [ChannelCount]uint16
	CRC16   uint16
}

// New builds a neutral packet: all channels centered, CLAMP_ENABLE set,
// t_ms 0, CRC left at zero pending Encode.
func New(seq uint32) Packet {
	var p Packet
	p.Seq = seq
	p.TMs = 0
	p.Flags = FlagClampEnable
	for i := range p.ServoUs {
		p.ServoUs[i] = PWMNeutralUs
	}
	return p
}

// HasEstop reports whether the ESTOP flag is set.
func (p *Packet) HasEstop() bool { return p.Flags&FlagEstop != 0 }

// HasHold reports whether the HOLD flag is set.
func (p *Packet) HasHold() bool { return p.Flags&FlagHold != 0 }

// HasScanEnable reports whether the scan channel is under sweep control.
func (p *Packet) HasScanEnable() bool { return p.Flags&FlagScanEnable != 0 }

// InterpMode reports which interpolation mode the packet requests.
func (p *Packet) InterpMode() InterpMode {
	if p.Flags&FlagInterpQ16 != 0 {
		return InterpQ16
	}
	return InterpFloat
}

// InterpMode selects float or Q16.16 interpolation (see internal/interpolate).
type InterpMode int

const (
	InterpFloat InterpMode = iota
	InterpQ16
)

// ClampChannels returns a copy of ServoUs with every channel saturated
// into [PWMMinUs, PWMMaxUs].
func (p *Packet) ClampChannels() [ChannelCount]uint16 {
	var out [ChannelCount]uint16
	for i, v := range p.ServoUs {
		out[i] = ClampUs(v)
	}
	return out
}
