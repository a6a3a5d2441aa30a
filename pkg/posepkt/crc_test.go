// SPDX-License-Identifier: Apache-2.0

package posepkt

import "testing"

func TestCRC16Vectors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint16
	}{
		{"check string", []byte("123456789"), 0x29B1},
		{"empty", []byte{}, 0xFFFF},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CRC16(tc.data)
			if got != tc.want {
				t.Errorf("CRC16(%q) = 0x%04X, want 0x%04X", tc.data, got, tc.want)
			}
		})
	}
}
