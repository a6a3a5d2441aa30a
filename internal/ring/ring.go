// SPDX-License-Identifier: Apache-2.0

// Package ring implements the single-producer/single-consumer packet
// ring that the brain and muscle domains share over a memory-mapped
// region: a 16-byte header (write_idx, read_idx, flags, reserved)
// followed by 8 slots of 64 bytes each, 528 bytes total. The brain
// process is the sole writer of write_idx and the muscle process the
// sole writer of read_idx; each side only reads the other's index (a
// ResetHeader at brain startup aside). Index fields are backed
// by sync/atomic so the two processes never need an explicit fence.
package ring

import (
	"errors"
	"sync/atomic"
	"unsafe"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

const (
	SlotCount  = 8 // must be a power of two
	SlotSize   = 64
	HeaderSize = 16
	TotalSize  = HeaderSize + SlotCount*SlotSize // 528
)

// Flags bitfield stored in the shared header.
const (
	FlagBrainReady  uint32 = 1 << 0
	FlagMuscleReady uint32 = 1 << 1
	FlagEstop       uint32 = 1 << 2
	FlagOverflow    uint32 = 1 << 3
)

// ErrFull is returned by Push when the ring has no free slot.
var ErrFull = errors.New("ring: full")

// Ring is a view over a 528-byte memory region laid out as the shared
// header followed by SlotCount fixed-size slots. The region is not
// owned by Ring; callers obtain it via OpenShared (mmap'd shared memory) or an
// in-process byte slice for tests.
type Ring struct {
	mem []byte
}

// New wraps mem as a Ring. mem must be at least TotalSize bytes and
// must remain valid for the lifetime of the Ring.
func New(mem []byte) (*Ring, error) {
	if len(mem) < TotalSize {
		return nil, errors.New("ring: buffer too small")
	}
	return &Ring{mem: mem[:TotalSize]}, nil
}

func (r *Ring) writeIdxPtr() *uint32 { return (*uint32)(unsafe.Pointer(&r.mem[0])) }
func (r *Ring) readIdxPtr() *uint32  { return (*uint32)(unsafe.Pointer(&r.mem[4])) }
func (r *Ring) flagsPtr() *uint32    { return (*uint32)(unsafe.Pointer(&r.mem[8])) }
func (r *Ring) reservedPtr() *uint32 { return (*uint32)(unsafe.Pointer(&r.mem[12])) }

// WriteIdx returns the current monotonic write index.
func (r *Ring) WriteIdx() uint32 { return atomic.LoadUint32(r.writeIdxPtr()) }

// ReadIdx returns the current monotonic read index.
func (r *Ring) ReadIdx() uint32 { return atomic.LoadUint32(r.readIdxPtr()) }

// Available reports the number of unread slots.
func (r *Ring) Available() uint32 {
	return r.WriteIdx() - r.ReadIdx()
}

// IsFull reports whether the ring holds SlotCount unread packets.
func (r *Ring) IsFull() bool {
	return r.Available() >= SlotCount
}

// IsEmpty reports whether there is nothing left to drain.
func (r *Ring) IsEmpty() bool {
	return r.WriteIdx() == r.ReadIdx()
}

// Flags returns the current status-flag bitfield.
func (r *Ring) Flags() uint32 { return atomic.LoadUint32(r.flagsPtr()) }

// SetFlag ORs bit into the status-flag bitfield.
func (r *Ring) SetFlag(bit uint32) {
	p := r.flagsPtr()
	for {
		old := atomic.LoadUint32(p)
		if atomic.CompareAndSwapUint32(p, old, old|bit) {
			return
		}
	}
}

// ClearFlag ANDs bit out of the status-flag bitfield.
func (r *Ring) ClearFlag(bit uint32) {
	p := r.flagsPtr()
	for {
		old := atomic.LoadUint32(p)
		if atomic.CompareAndSwapUint32(p, old, old&^bit) {
			return
		}
	}
}

// ResetHeader zeroes write_idx, read_idx and the reserved word, then
// publishes bit as the only set flag. Called once by the producer at
// startup, before anything is pushed: without it, a header inherited
// from a prior run (a stale write_idx with read_idx at 0, say) makes
// IsFull true immediately and every Push fails with ErrFull forever.
func (r *Ring) ResetHeader(bit uint32) {
	atomic.StoreUint32(r.writeIdxPtr(), 0)
	atomic.StoreUint32(r.readIdxPtr(), 0)
	atomic.StoreUint32(r.reservedPtr(), 0)
	atomic.StoreUint32(r.flagsPtr(), bit)
}

func slotIndex(idx uint32) uint32 { return idx % SlotCount }

func (r *Ring) slot(idx uint32) []byte {
	off := HeaderSize + int(slotIndex(idx))*SlotSize
	return r.mem[off : off+SlotSize]
}

// Push encodes p into the next free slot and publishes it by advancing
// write_idx. Returns ErrFull if the consumer has not kept up, mirroring
// the original's shared_buffer_is_full check performed before every
// write rather than blocking the producer.
func (r *Ring) Push(p posepkt.Packet) error {
	if r.IsFull() {
		r.SetFlag(FlagOverflow)
		return ErrFull
	}

	wi := r.WriteIdx()
	buf := posepkt.Encode(p)
	copy(r.slot(wi), buf[:])

	atomic.StoreUint32(r.writeIdxPtr(), wi+1)
	return nil
}

// Drain decodes every packet between read_idx and write_idx, in order,
// advancing read_idx as each is consumed. A malformed slot is skipped
// rather than aborting the drain, so one corrupt packet never stalls
// the ones behind it.
func (r *Ring) Drain() ([]posepkt.Packet, error) {
	var out []posepkt.Packet
	var firstErr error

	ri := r.ReadIdx()
	wi := r.WriteIdx()
	for ri != wi {
		p, err := posepkt.Decode(r.slot(ri))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			out = append(out, p)
		}
		ri++
		atomic.StoreUint32(r.readIdxPtr(), ri)
	}

	return out, firstErr
}
