// SPDX-License-Identifier: Apache-2.0

package posepkt

import "encoding/binary"

// Encode serializes p to the 42-byte little-endian wire format and
// finalizes its CRC over the first 40 bytes. The CRC16 field of p is not
// mutated; only the returned bytes carry the freshly computed value.
func Encode(p Packet) [WireSize]byte {
	var buf [WireSize]byte

	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	buf[2] = VerMajor
	buf[3] = VerMinor
	binary.LittleEndian.PutUint32(buf[4:8], p.Seq)
	binary.LittleEndian.PutUint32(buf[8:12], p.TMs)
	binary.LittleEndian.PutUint16(buf[12:14], p.Flags)
	for i, us := range p.ServoUs {
		off := 14 + i*2
		binary.LittleEndian.PutUint16(buf[off:off+2], us)
	}

	crc := CRC16(buf[:40])
	binary.LittleEndian.PutUint16(buf[40:42], crc)

	return buf
}

// Decode parses a 42-byte wire packet, validating magic, version, and
// CRC in that order (§4.3). On any failure the returned Packet is the
// zero value and the error identifies which invariant broke, for the
// caller to map onto a fault flag (PKT_MAGIC/PKT_VERSION/PKT_CRC).
func Decode(buf []byte) (Packet, error) {
	var p Packet

	if len(buf) < WireSize {
		return p, ErrShortRead
	}

	magic := binary.LittleEndian.Uint16(buf[0:2])
	if magic != Magic {
		return p, ErrBadMagic
	}

	verMajor, verMinor := buf[2], buf[3]
	if verMajor != VerMajor || verMinor != VerMinor {
		return p, ErrBadVersion
	}

	wantCRC := binary.LittleEndian.Uint16(buf[40:42])
	gotCRC := CRC16(buf[:40])
	if wantCRC != gotCRC {
		return p, ErrBadCRC
	}

	p.Seq = binary.LittleEndian.Uint32(buf[4:8])
	p.TMs = binary.LittleEndian.Uint32(buf[8:12])
	p.Flags = binary.LittleEndian.Uint16(buf[12:14])
	for i := range p.ServoUs {
		off := 14 + i*2
		p.ServoUs[i] = binary.LittleEndian.Uint16(buf[off : off+2])
	}
	p.CRC16 = wantCRC

	return p, nil
}
