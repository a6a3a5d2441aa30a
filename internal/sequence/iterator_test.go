// SPDX-License-Identifier: Apache-2.0

package sequence

import "testing"

func TestIteratorWalksFramesInOrder(t *testing.T) {
	seq := &Sequence{Frames: []Frame{
		{TMs: 10}, {TMs: 20}, {TMs: 30},
	}}
	it := NewIterator(seq)

	var got []uint32
	for it.HasNext() {
		got = append(got, it.Next().TMs)
	}

	want := []uint32{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("walked %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walked %v, want %v", got, want)
		}
	}
	if !it.IsComplete() {
		t.Fatalf("IsComplete() = false after exhausting frames")
	}
}

func TestIteratorResetRewinds(t *testing.T) {
	seq := &Sequence{Frames: []Frame{{TMs: 1}, {TMs: 2}}}
	it := NewIterator(seq)
	it.Next()
	it.Next()
	if !it.IsComplete() {
		t.Fatalf("precondition: expected complete")
	}

	it.Reset()
	if it.IsComplete() {
		t.Fatalf("IsComplete() = true after Reset()")
	}
	if it.TotalFrames() != 2 {
		t.Fatalf("TotalFrames() = %d, want 2", it.TotalFrames())
	}
}

func TestIteratorNilSequenceIsImmediatelyComplete(t *testing.T) {
	it := NewIterator(nil)
	if !it.IsComplete() || it.HasNext() {
		t.Fatalf("nil-sequence iterator should be immediately complete with no next frame")
	}
}
