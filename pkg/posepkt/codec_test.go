// SPDX-License-Identifier: Apache-2.0

package posepkt

import "testing"

func TestEncodeSize(t *testing.T) {
	p := New(1)
	buf := Encode(p)
	if len(buf) != WireSize {
		t.Fatalf("Encode produced %d bytes, want %d", len(buf), WireSize)
	}
}

func TestRoundTrip(t *testing.T) {
	p := New(42)
	p.TMs = 1234
	p.Flags = FlagHold | FlagInterpQ16
	for i := range p.ServoUs {
		p.ServoUs[i] = uint16(1000 + i*10)
	}

	buf := Encode(p)
	got, err := Decode(buf[:])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got.Seq != p.Seq || got.TMs != p.TMs || got.Flags != p.Flags {
		t.Fatalf("Decode() = %+v, want %+v", got, p)
	}
	for i := range p.ServoUs {
		if got.ServoUs[i] != p.ServoUs[i] {
			t.Fatalf("ServoUs[%d] = %d, want %d", i, got.ServoUs[i], p.ServoUs[i])
		}
	}
}

func TestDecodeShortRead(t *testing.T) {
	buf := make([]byte, WireSize-1)
	if _, err := Decode(buf); err != ErrShortRead {
		t.Fatalf("Decode() error = %v, want %v", err, ErrShortRead)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	p := New(1)
	buf := Encode(p)
	buf[0] ^= 0xFF

	if _, err := Decode(buf[:]); err != ErrBadMagic {
		t.Fatalf("Decode() error = %v, want %v", err, ErrBadMagic)
	}
}

func TestDecodeBadVersion(t *testing.T) {
	p := New(1)
	buf := Encode(p)
	buf[2] = VerMajor + 1

	if _, err := Decode(buf[:]); err != ErrBadVersion {
		t.Fatalf("Decode() error = %v, want %v", err, ErrBadVersion)
	}
}

func TestDecodeBadCRC(t *testing.T) {
	p := New(1)
	buf := Encode(p)
	buf[10] ^= 0x01 // flip a bit inside the covered range, CRC untouched

	if _, err := Decode(buf[:]); err != ErrBadCRC {
		t.Fatalf("Decode() error = %v, want %v", err, ErrBadCRC)
	}
}

func TestNewPacketIsNeutral(t *testing.T) {
	p := New(7)
	if p.Flags&FlagClampEnable == 0 {
		t.Errorf("New() did not set CLAMP_ENABLE")
	}
	for i, us := range p.ServoUs {
		if us != PWMNeutralUs {
			t.Errorf("ServoUs[%d] = %d, want neutral %d", i, us, PWMNeutralUs)
		}
	}
}
