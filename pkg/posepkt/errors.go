// SPDX-License-Identifier: Apache-2.0

package posepkt

import "errors"

// Decode error kinds (§4.3, §4.13). Bad magic, version and CRC each map
// 1:1 to a fault flag the caller is expected to raise; a short read maps
// to none. posepkt itself never touches fault state.
var (
	ErrBadMagic   = errors.New("posepkt: bad magic")
	ErrBadVersion = errors.New("posepkt: bad version")
	ErrBadCRC     = errors.New("posepkt: bad crc")
	ErrShortRead  = errors.New("posepkt: short buffer")
)
